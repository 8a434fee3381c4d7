package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
database:
  postgres:
    host: localhost
    database: specgen
    user: ${TEST_SPECGEN_DB_USER}
  redis:
    address: localhost:6379
generation:
  api_key: test-key
`

func TestLoadFromFile_Defaults(t *testing.T) {
	t.Setenv("TEST_SPECGEN_DB_USER", "specgen")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "specgen", cfg.Database.Postgres.User)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, "https://api.anthropic.com", cfg.Generation.BaseURL)
	assert.Equal(t, "2023-06-01", cfg.Generation.AnthropicVersion)
	assert.Equal(t, 8000, cfg.Generation.MaxTokens)
	assert.Equal(t, 4, cfg.Orchestrator.Workers)
	assert.Equal(t, 64, cfg.Orchestrator.QueueSize)
	assert.True(t, cfg.Orchestrator.SingleFlight)
	assert.Equal(t, 15*time.Minute, GetDuration(cfg.Orchestrator.StaleAfter))
	assert.Equal(t, "specifications", cfg.Search.Index)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestLoadFromFile_SingleFlightCanBeDisabled(t *testing.T) {
	t.Setenv("TEST_SPECGEN_DB_USER", "specgen")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+`
orchestrator:
  single_flight: false
`))
	require.NoError(t, err)
	assert.False(t, cfg.Orchestrator.SingleFlight)
}

func TestLoadFromFile_APIKeyFromEnvironment(t *testing.T) {
	t.Setenv("TEST_SPECGEN_DB_USER", "specgen")
	t.Setenv("ANTHROPIC_API_KEY", "from-env")

	cfg, err := LoadFromFile(writeConfig(t, `
database:
  postgres:
    host: localhost
    database: specgen
    user: ${TEST_SPECGEN_DB_USER}
  redis:
    address: localhost:6379
`))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Generation.APIKey)
}

func TestLoadFromFile_Validation(t *testing.T) {
	t.Setenv("TEST_SPECGEN_DB_USER", "specgen")
	t.Setenv("ANTHROPIC_API_KEY", "")

	tests := []struct {
		name    string
		extra   string
		wantErr string
	}{
		{"camunda without broker", "camunda:\n  enabled: true\n", "camunda.broker_address"},
		{"search without addresses", "search:\n  enabled: true\n", "database.elasticsearch.addresses"},
		{"sns without topic", "notifications:\n  sns:\n    enabled: true\n", "notifications.sns.topic_arn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, minimalConfig+tt.extra))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
