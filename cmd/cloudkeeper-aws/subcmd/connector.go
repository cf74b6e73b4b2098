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
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/rpc"
)

// connectorFlags address a running connector. The target is the
// listen-address of its settings.
type connectorFlags struct {
	settings settingsFlags
	Timeout  time.Duration
}

func (c *connectorFlags) bind(cmd *cobra.Command) {
	c.settings.bind(cmd)
	cmd.Flags().DurationVar(&c.Timeout, "timeout", 30*time.Second, "request timeout")
}

func (c *connectorFlags) dial(cmd *cobra.Command) (*rpc.Client, context.Context, context.CancelFunc, error) {
	cfg, err := c.settings.load(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	client, err := rpc.Dial(cfg.ListenAddress, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), c.Timeout)
	return client, ctx, cancel, nil
}
