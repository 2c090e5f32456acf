package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration from multiple sources in priority order:
//  1. Default values
//  2. Configuration file (explicit path, or stabled.toml searched in
//     the working directory, $HOME/.stabled and /etc/stabled)
//  3. Environment variables (STABLED_ prefix, dots become underscores)
//
// An explicit path must exist; a missing searched file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	// 1. Defaults first
	setDefaults(v)

	// 2. Configuration file
	usedFile, err := readConfigFile(v, path)
	if err != nil {
		return nil, err
	}

	// 3. Environment variable support
	v.SetEnvPrefix("STABLED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Unmarshal into the struct
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.configFile = usedFile

	// 5. Validate the complete configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// readConfigFile loads the configuration file into v and returns the
// path that was actually read.
func readConfigFile(v *viper.Viper, path string) (string, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return "", fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return v.ConfigFileUsed(), nil
	}

	v.SetConfigName("stabled")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.stabled")
	v.AddConfigPath("/etc/stabled")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Running on defaults and environment alone.
			return "", nil
		}
		return "", fmt.Errorf("failed to read config file: %w", err)
	}
	return v.ConfigFileUsed(), nil
}
