package utils

import (
	"fmt"
	"os"
	"pvv/api/models"

	"github.com/kelseyhightower/envconfig"
	yaml "gopkg.in/yaml.v2"
)

const ConfigFileEnv = "PVV_CONFIG_FILE"

// LoadConfig layers the configuration: defaults, then the optional
// yaml file, then environment variables
func LoadConfig(configFile string) (*models.Config, error) {
	cfg := models.DefaultConfig()

	if configFile == "" {
		configFile = os.Getenv(ConfigFileEnv)
	}
	if configFile != "" {
		if err := decodeYamlFile(configFile, &cfg); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	return &cfg, nil
}

func decodeYamlFile(path string, cfg *models.Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config file %s: %w", path, err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("decoding config file %s: %w", path, err)
	}
	return nil
}
