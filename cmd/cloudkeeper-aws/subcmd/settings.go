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
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/loader"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
)

// settingsFlags are the command line overrides of the settings files. Only
// flags given explicitly replace file values.
type settingsFlags struct {
	ConfigPath      string
	ListenAddress   string
	BucketName      string
	Identifier      string
	PollingTimeout  int
	PollingInterval int
	Authentication  bool
	Certificate     string
	Key             string
	CoreCertificate string
	Progress        bool
	Region          string
	Endpoint        string
	MetricsAddress  string
	NatsUrl         string
}

func (s *settingsFlags) bind(cmd *cobra.Command) {
	defaults := model.DefaultConfig()
	cmd.Flags().StringVar(&s.ConfigPath, "config", "", "path to settings file")
	cmd.Flags().StringVar(&s.ListenAddress, "listen-address", defaults.ListenAddress, "gRPC listen address")
	cmd.Flags().StringVar(&s.BucketName, "bucket-name", defaults.BucketName, "S3 bucket used to stage images")
	cmd.Flags().StringVar(&s.Identifier, "identifier", defaults.Identifier, "owner identifier tagged onto every image")
	cmd.Flags().IntVar(&s.PollingTimeout, "polling-timeout", defaults.PollingTimeout, "import polling timeout in seconds")
	cmd.Flags().IntVar(&s.PollingInterval, "polling-interval", defaults.PollingInterval, "import polling interval in seconds")
	cmd.Flags().BoolVar(&s.Authentication, "authentication", false, "require mutual TLS")
	cmd.Flags().StringVar(&s.Certificate, "certificate", "", "connector certificate")
	cmd.Flags().StringVar(&s.Key, "key", "", "connector private key")
	cmd.Flags().StringVar(&s.CoreCertificate, "core-certificate", "", "certificate of the cloudkeeper core")
	cmd.Flags().BoolVar(&s.Progress, "progress", false, "log import progress")
	cmd.Flags().StringVar(&s.Region, "region", defaults.Aws.Region, "AWS region")
	cmd.Flags().StringVar(&s.Endpoint, "endpoint", "", "custom S3/EC2 endpoint")
	cmd.Flags().StringVar(&s.MetricsAddress, "metrics-address", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&s.NatsUrl, "nats-url", "", "publish catalog events to this NATS server")
}

func (s *settingsFlags) load(cmd *cobra.Command) (*model.Config, error) {
	cfg, err := loader.LoadConfig(s.ConfigPath)
	if err != nil {
		return nil, err
	}
	changed := cmd.Flags().Changed
	if changed("listen-address") {
		cfg.ListenAddress = s.ListenAddress
	}
	if changed("bucket-name") {
		cfg.BucketName = s.BucketName
	}
	if changed("identifier") {
		cfg.Identifier = s.Identifier
	}
	if changed("polling-timeout") {
		cfg.PollingTimeout = s.PollingTimeout
	}
	if changed("polling-interval") {
		cfg.PollingInterval = s.PollingInterval
	}
	if changed("authentication") {
		cfg.Authentication = s.Authentication
	}
	if changed("certificate") {
		cfg.Certificate = s.Certificate
	}
	if changed("key") {
		cfg.Key = s.Key
	}
	if changed("core-certificate") {
		cfg.Core.Certificate = s.CoreCertificate
	}
	if changed("progress") {
		cfg.Progress = s.Progress
	}
	if changed("region") {
		cfg.Aws.Region = s.Region
	}
	if changed("endpoint") {
		cfg.Aws.Endpoint = s.Endpoint
	}
	if changed("metrics-address") {
		cfg.MetricsAddress = s.MetricsAddress
	}
	if changed("nats-url") {
		cfg.NatsUrl = s.NatsUrl
	}
	if verbose {
		cfg.Debug = true
	}
	if cfg.Debug {
		initLogging(true)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
