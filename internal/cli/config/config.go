// Package config loads the latticemeta tool configuration from
// latticemeta.yml and the environment.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config controls latticemeta output and the optional introspection
// listener.
type Config struct {
	// NoColor disables terminal styling in reports.
	NoColor bool `mapstructure:"no_color"`

	// Verbose enables debug logging from the metadata engine.
	Verbose bool `mapstructure:"verbose"`

	// RequestedState is the completion state layout reports drive types
	// to: "layout" or "complete".
	RequestedState string `mapstructure:"requested_state"`

	// ListenAddr is the address the serve command binds. Introspection
	// exposes type layouts, so it defaults to loopback.
	ListenAddr string `mapstructure:"listen_addr"`
}

// Load reads latticemeta.yml from the working directory, applying defaults
// and LATTICEMETA_* environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("no_color", false)
	v.SetDefault("verbose", false)
	v.SetDefault("requested_state", "complete")
	v.SetDefault("listen_addr", "localhost:6061")

	v.SetConfigName("latticemeta")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LATTICEMETA")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.RequestedState {
	case "layout", "complete":
		return nil
	default:
		return fmt.Errorf("invalid requested_state %q: must be \"layout\" or \"complete\"", cfg.RequestedState)
	}
}
