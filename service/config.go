package service

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const DefaultRetryCap = 8

// Config carries the coordinator's tunables. Zero values fall back to
// defaults, so a partial YAML file is fine.
type Config struct {
	StorePath string `yaml:"store_path"`
	RetryCap  int    `yaml:"retry_cap"`
	LogLevel  string `yaml:"log_level"`
}

func DefaultConfig() Config {
	return Config{
		RetryCap: DefaultRetryCap,
		LogLevel: "info",
	}
}

// LoadConfig reads a YAML config file, filling unset fields with
// defaults.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("service: read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("service: decode config: %w", err)
	}
	return cfg.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	if c.RetryCap <= 0 {
		c.RetryCap = DefaultRetryCap
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return c
}

func (c Config) newLogger() (*logrus.Logger, error) {
	lg := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("service: log level: %w", err)
	}
	lg.SetLevel(level)
	return lg, nil
}
