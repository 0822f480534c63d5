package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

type FireConfig struct {
	Selector string   `yaml:"selector"`
	Event    string   `yaml:"event"`
	Args     []string `yaml:"args"`
}

type Config struct {
	Document string `yaml:"document" env:"EVPLAY_DOCUMENT,overwrite"`
	Script   string `yaml:"script" env:"EVPLAY_SCRIPT,overwrite"`
	Logger   struct {
		Level string `yaml:"level" env:"EVPLAY_LOG_LEVEL,overwrite"`
		Color bool   `yaml:"color" env:"EVPLAY_LOG_COLOR,overwrite"`
	} `yaml:"logger"`
	Fire []FireConfig `yaml:"fire"`
}

type InvalidConfigurationParameterError struct {
	Parameter string
	Reason    string
}

func (e *InvalidConfigurationParameterError) Error() string {
	return fmt.Sprintf("invalid configuration parameter %s: %s", e.Parameter, e.Reason)
}

func (c *Config) Validate() error {
	if c.Document == "" {
		return &InvalidConfigurationParameterError{
			Parameter: "Document",
			Reason:    "a document to load is required",
		}
	}
	for i, f := range c.Fire {
		if f.Selector == "" || f.Event == "" {
			return &InvalidConfigurationParameterError{
				Parameter: fmt.Sprintf("Fire[%d]", i),
				Reason:    "both selector and event are required",
			}
		}
	}
	return nil
}

// ParseFire reads "<selector>|<event>[|arg...]" as given on the command line.
func ParseFire(raw string) (FireConfig, error) {
	parts := strings.Split(raw, "|")
	if len(parts) < 2 {
		return FireConfig{}, &InvalidConfigurationParameterError{
			Parameter: "fire",
			Reason:    fmt.Sprintf("%q is not selector|event[|arg...]", raw),
		}
	}
	return FireConfig{Selector: parts[0], Event: parts[1], Args: parts[2:]}, nil
}

func BuildNewConfig(path string) func() (*Config, error) {
	return func() (*Config, error) {
		var config Config
		config.Logger.Level = "info"
		if path != "" {
			file, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			defer file.Close()

			decoder := yaml.NewDecoder(file)

			if err := decoder.Decode(&config); err != nil {
				return nil, err
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
		defer cancel()
		if err := envconfig.Process(ctx, &config); err != nil {
			return nil, err
		}

		return &config, nil
	}
}
