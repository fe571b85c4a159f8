package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.internal
  port: 5433
  user: admission
  password: secret
  database: crowdlunch

rabbitmq:
  enabled: true
  host: mq.internal
  user: guest
  password: guest
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}

	if cfg.Database.Host != "db.internal" || cfg.Database.Port != 5433 {
		t.Errorf("database = %+v, want host db.internal port 5433", cfg.Database)
	}
	if cfg.Database.Name != "crowdlunch" {
		t.Errorf("database name = %q, want crowdlunch", cfg.Database.Name)
	}
	if !cfg.RabbitMQ.Enabled {
		t.Error("rabbitmq.enabled = false, want true")
	}
	// rabbitmq.port omitted: the default applies
	if cfg.RabbitMQ.Port != 5672 {
		t.Errorf("rabbitmq port = %d, want default 5672", cfg.RabbitMQ.Port)
	}
}

func TestLoadFromFileDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  user: admission
  password: secret
  database: crowdlunch
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if cfg.Database.Host != "localhost" || cfg.Database.Port != 5432 {
		t.Errorf("defaults not applied: %+v", cfg.Database)
	}
	if cfg.RabbitMQ.Enabled {
		t.Error("rabbitmq should be disabled by default")
	}
}

func TestLoadFromFileValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missingDatabaseUser",
			content: `
database:
  password: secret
  database: crowdlunch
`,
		},
		{
			name: "missingDatabaseName",
			content: `
database:
  user: admission
  password: secret
`,
		},
		{
			name: "enabledRabbitMQWithoutCredentials",
			content: `
database:
  user: admission
  password: secret
  database: crowdlunch

rabbitmq:
  enabled: true
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFromFile(writeConfig(t, tt.content)); err == nil {
				t.Error("LoadFromFile() accepted an invalid config")
			}
		})
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFromFile() should fail for a missing file")
	}
	if _, err := LoadFromFile(writeConfig(t, "database: [not, a, map]")); err == nil {
		t.Error("LoadFromFile() should fail for malformed YAML")
	}
}
