package model

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	ConfigFileName  = "cloudkeeper-aws.yml"
	SystemConfigDir = "/etc/cloudkeeper-aws"
)

type Config struct {
	PollingTimeout      int          `yaml:"polling-timeout"`
	PollingInterval     int          `yaml:"polling-interval"`
	BucketName          string       `yaml:"bucket-name"`
	ListenAddress       string       `yaml:"listen-address"`
	Authentication      bool         `yaml:"authentication"`
	Certificate         string       `yaml:"certificate"`
	Key                 string       `yaml:"key"`
	Core                CoreConfig   `yaml:"core"`
	Identifier          string       `yaml:"identifier"`
	Progress            bool         `yaml:"progress"`
	Debug               bool         `yaml:"debug"`
	Aws                 AwsConfig    `yaml:"aws"`
	ImportSuccessStatus []string     `yaml:"import-success-status"`
	ImportFailureStatus []string     `yaml:"import-failure-status"`
	MetricsAddress      string       `yaml:"metrics-address"`
	Influx              InfluxConfig `yaml:"influx"`
	NatsUrl             string       `yaml:"nats-url"`
}

type CoreConfig struct {
	Certificate string `yaml:"certificate"`
}

type AwsConfig struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

type InfluxConfig struct {
	Url    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

func (c InfluxConfig) Enabled() bool {
	return c.Url != ""
}

func DefaultConfig() *Config {
	return &Config{
		PollingTimeout:      3600,
		PollingInterval:     10,
		BucketName:          "cloudkeeper-aws",
		ListenAddress:       "127.0.0.1:50051",
		Identifier:          "cloudkeeper-aws",
		Aws:                 AwsConfig{Region: "eu-central-1"},
		ImportSuccessStatus: []string{"completed"},
		ImportFailureStatus: []string{"deleting", "deleted", "failed"},
	}
}

func (c *Config) PollingTimeoutDuration() time.Duration {
	return time.Duration(c.PollingTimeout) * time.Second
}

func (c *Config) PollingIntervalDuration() time.Duration {
	return time.Duration(c.PollingInterval) * time.Second
}

// Validate raises an InvalidConfiguration error describing the first problem found.
func (c *Config) Validate() error {
	if c.Authentication {
		var missing []string
		if c.Certificate == "" {
			missing = append(missing, "certificate")
		}
		if c.Key == "" {
			missing = append(missing, "key")
		}
		if c.Core.Certificate == "" {
			missing = append(missing, "core-certificate")
		}
		if len(missing) > 0 {
			return NewError(KindInvalidConfiguration, "authentication configuration missing: %s", strings.Join(missing, ", "))
		}
	}
	if c.PollingTimeout <= 0 {
		return NewError(KindInvalidConfiguration, "polling-timeout must be positive, got %d", c.PollingTimeout)
	}
	if c.PollingInterval < 0 {
		return NewError(KindInvalidConfiguration, "polling-interval must not be negative, got %d", c.PollingInterval)
	}
	if c.Identifier == "" {
		return NewError(KindInvalidConfiguration, "identifier must be set")
	}
	if c.BucketName == "" {
		return NewError(KindInvalidConfiguration, "bucket-name must be set")
	}
	if len(c.ImportSuccessStatus) == 0 || len(c.ImportFailureStatus) == 0 {
		return NewError(KindInvalidConfiguration, "import success and failure status lists must not be empty")
	}
	return nil
}

// ConfigDir returns the per-user settings directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cloudkeeper-aws"), nil
}

// ConfigSearchPath lists settings files in increasing order of precedence.
func ConfigSearchPath() []string {
	paths := []string{filepath.Join(SystemConfigDir, ConfigFileName)}
	if dir, err := ConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, ConfigFileName))
	}
	return paths
}
