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
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/mcp"
)

func init() {
	RootCmd.AddCommand(NewMCPServerCommand())
}

func NewMCPServerCommand() *cobra.Command {
	mcpCmd := &MCPServerCommand{}

	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Start MCP server exposing the appliance catalog",
		Long: `Start an MCP (Model Context Protocol) server that exposes the
appliance catalog of this connector to AI assistants.

The server provides tools for:
  - list_image_lists: List the image lists registered by this connector
  - list_appliances: List the appliances of one image list
  - remove_expired_appliances: Deregister every expired appliance

And resources:
  - cloudkeeper://image-lists: Image list identifiers`,
		Args: cobra.NoArgs,
		RunE: mcpCmd.run,
	}

	mcpCmd.settings.bind(cmd)
	cmd.Flags().BoolVar(&mcpCmd.UseMemory, "memory", false, "use in-memory backends (for testing)")

	return cmd
}

type MCPServerCommand struct {
	settings  settingsFlags
	UseMemory bool
}

func (m *MCPServerCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := m.settings.load(cmd)
	if err != nil {
		return err
	}
	orchestrator, err := newOrchestrator(cmd.Context(), cfg, m.UseMemory)
	if err != nil {
		return err
	}

	logrus.Info("starting MCP server on stdio...")
	return mcp.NewCatalogMCPServer(orchestrator, Version).ServeStdio()
}
