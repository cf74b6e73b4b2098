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
)

func init() {
	RootCmd.AddCommand(NewSweepCommand())
}

func NewSweepCommand() *cobra.Command {
	sweepCmd := &SweepCommand{}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Deregister every expired appliance owned by this connector",
		Args:  cobra.NoArgs,
		RunE:  sweepCmd.run,
	}

	sweepCmd.settings.bind(cmd)
	cmd.Flags().BoolVar(&sweepCmd.UseMemory, "memory", false, "use in-memory backends instead of AWS")

	return cmd
}

type SweepCommand struct {
	settings  settingsFlags
	UseMemory bool
}

func (s *SweepCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := s.settings.load(cmd)
	if err != nil {
		return err
	}
	orchestrator, err := newOrchestrator(cmd.Context(), cfg, s.UseMemory)
	if err != nil {
		return err
	}

	removed, err := orchestrator.SweepExpired(cmd.Context())
	renderAppliances(cmd.OutOrStdout(), removed)
	if err != nil {
		return err
	}
	logrus.Infof("removed %d expired appliance(s)", len(removed))
	return nil
}
