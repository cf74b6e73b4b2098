package loader

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
	"gopkg.in/yaml.v2"
)

// LoadConfig starts from the defaults and merges every existing file of the
// settings search path, followed by explicit (which must exist when set).
func LoadConfig(explicit string) (*model.Config, error) {
	cfg := model.DefaultConfig()
	for _, path := range model.ConfigSearchPath() {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := MergeFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if explicit != "" {
		if err := MergeFile(cfg, explicit); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// MergeFile overlays the keys present in the YAML file at path onto cfg.
func MergeFile(cfg *model.Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.WrapError(model.KindInvalidConfiguration, err, "cannot read settings file [%s]", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return model.WrapError(model.KindInvalidConfiguration, errors.WithStack(err), "cannot parse settings file [%s]", path)
	}
	logrus.Debugf("merged settings from [%s]", path)
	return nil
}
