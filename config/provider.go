package config

import "go.uber.org/fx"

// NewProvider supplies customConfig when given, otherwise loads from the environment.
// Both paths go through Validate so a bad reset configuration fails at startup.
func NewProvider(customConfig *Config) fx.Option {
	if customConfig != nil {
		return fx.Provide(func() (*Config, error) {
			if err := Validate(customConfig); err != nil {
				return nil, err
			}
			return customConfig, nil
		})
	}

	return fx.Provide(func() (*Config, error) {
		cfg := &Config{}
		if err := LoadConfig(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	})
}
