/*
	(c) Copyright NetFoundry Inc. Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package subcmd

import (
	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(NewImageListsCommand())
}

func NewImageListsCommand() *cobra.Command {
	listCmd := &ImageListsCommand{}

	cmd := &cobra.Command{
		Use:   "image-lists",
		Short: "List the image lists registered with a running connector",
		Args:  cobra.NoArgs,
		RunE:  listCmd.run,
	}

	listCmd.connector.bind(cmd)

	return cmd
}

type ImageListsCommand struct {
	connector connectorFlags
}

func (l *ImageListsCommand) run(cmd *cobra.Command, _ []string) error {
	client, ctx, cancel, err := l.connector.dial(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer func() { _ = client.Close() }()

	ids, err := client.ListImageLists(ctx)
	if err != nil {
		return err
	}
	renderImageLists(cmd.OutOrStdout(), ids)
	return nil
}
