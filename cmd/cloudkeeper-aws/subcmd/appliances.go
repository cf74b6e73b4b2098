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
	RootCmd.AddCommand(NewAppliancesCommand())
}

func NewAppliancesCommand() *cobra.Command {
	appliancesCmd := &AppliancesCommand{}

	cmd := &cobra.Command{
		Use:   "appliances",
		Short: "List the appliances of one image list on a running connector",
		Args:  cobra.NoArgs,
		RunE:  appliancesCmd.run,
	}

	appliancesCmd.connector.bind(cmd)
	cmd.Flags().StringVar(&appliancesCmd.ImageList, "image-list", "", "image list identifier")
	_ = cmd.MarkFlagRequired("image-list")

	return cmd
}

type AppliancesCommand struct {
	connector connectorFlags
	ImageList string
}

func (a *AppliancesCommand) run(cmd *cobra.Command, _ []string) error {
	client, ctx, cancel, err := a.connector.dial(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer func() { _ = client.Close() }()

	appliances, err := client.ListAppliances(ctx, a.ImageList)
	if err != nil {
		return err
	}
	renderAppliances(cmd.OutOrStdout(), appliances)
	return nil
}
