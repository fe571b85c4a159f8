package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database Database `yaml:"database"`
	RabbitMQ RabbitMQ `yaml:"rabbitmq"`
}

type Database struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"database"`
}

type RabbitMQ struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// Enabled gates event publishing; the admission core itself has no
	// broker dependency.
	Enabled bool `yaml:"enabled"`
}

// LoadFromFile loads config from a YAML file, applies defaults, and validates
// required fields.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets safe defaults for some fields.
func (c *Config) applyDefaults() {
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}

	if c.RabbitMQ.Host == "" {
		c.RabbitMQ.Host = "localhost"
	}
	if c.RabbitMQ.Port == 0 {
		c.RabbitMQ.Port = 5672
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		problems = append(problems, "database.port must be in 1..65535")
	}
	if c.Database.User == "" {
		problems = append(problems, "database.user is required")
	}
	if c.Database.Password == "" {
		problems = append(problems, "database.password is required")
	}
	if c.Database.Name == "" {
		problems = append(problems, "database.database (name) is required")
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
			problems = append(problems, "rabbitmq.port must be in 1..65535")
		}
		if c.RabbitMQ.User == "" {
			problems = append(problems, "rabbitmq.user is required")
		}
		if c.RabbitMQ.Password == "" {
			problems = append(problems, "rabbitmq.password is required")
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
