// Package config holds the typed YAML configuration of the chat node.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Version is the version of the node, set at the build time.
var Version string

// Config is the top level struct representing the config for the node.
type Config struct {
	ChatConfiguration        ChatConfiguration        `yaml:"ChatConfiguration"`
	ApplicationConfiguration ApplicationConfiguration `yaml:"ApplicationConfiguration"`
}

// Validate checks the semantic correctness of the whole configuration.
func (c Config) Validate() error {
	if err := c.ChatConfiguration.Validate(); err != nil {
		return err
	}
	return c.ApplicationConfiguration.Validate()
}

// LoadFile loads the config from the given path. Callers validate after
// applying their overrides.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config '%s': %w", path, err)
	}
	return Unmarshal(data)
}

// Unmarshal parses a config from its YAML form, filling defaults for
// absent settings.
func Unmarshal(data []byte) (Config, error) {
	cfg := Config{
		ChatConfiguration: ChatConfiguration{
			ListenAddress: DefaultListenAddress,
			ListenPort:    DefaultPort,
			ConnectPort:   DefaultPort,
			Proxy: Proxy{
				Address: DefaultProxyAddress,
				Port:    DefaultProxyPort,
				UserID:  DefaultProxyUserID,
			},
		},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}
