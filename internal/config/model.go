package config

import (
	"fmt"
	"time"
)

// ModelConfig points at the audio/text embedding model server.
type ModelConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Name       string        `mapstructure:"name"`
	Dimensions int           `mapstructure:"dimensions"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Validate checks that the model configuration has all required fields.
// Returns an error describing the first validation failure, or nil if valid.
func (c *ModelConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("model: base_url is required")
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("model %q: dimensions must be positive", c.Name)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("model %q: timeout must not be negative", c.Name)
	}
	return nil
}
