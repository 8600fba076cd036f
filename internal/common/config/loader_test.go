package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
app:
  name: fos-forms-workers
  version: 1.2.0
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: fosagri
    user: fos
    password: ${FOS_TEST_DB_PASSWORD}
  redis:
    address: localhost:6379
  elasticsearch:
    addresses:
      - http://localhost:9200
storage:
  minio:
    endpoint: localhost:9000
    bucket: demandes
forms:
  cache_ttl: 60
workers:
  load-form-schema:
    enabled: true
  submit-demande:
    enabled: false
    timeout: 15000
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile_Success(t *testing.T) {
	t.Setenv("FOS_TEST_DB_PASSWORD", "s3cret")

	cfg, err := LoadFromFile(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "1.2.0", cfg.App.Version)
	assert.Equal(t, "localhost:26500", cfg.Camunda.BrokerAddress)
	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, []string{"http://localhost:9200"}, cfg.Database.Elasticsearch.Addresses)
	assert.Equal(t, "demandes", cfg.Database.Elasticsearch.DemandeIndex)

	assert.Equal(t, time.Minute, cfg.Forms.CacheTTLDuration())
	assert.Equal(t, int64(10*1024*1024), cfg.Forms.MaxUploadBytes)
	assert.Contains(t, cfg.Forms.AllowedExtensions, "pdf")
	assert.Equal(t, ":8080", cfg.Server.Address)

	submit := cfg.Workers["submit-demande"]
	assert.False(t, submit.Enabled)
	assert.Equal(t, 15000, submit.Timeout)
	assert.Equal(t, 5, submit.MaxJobsActive)
}

func TestLoadFromFile_EnvOverride(t *testing.T) {
	t.Setenv("DATABASE_POSTGRES_HOST", "db.internal")

	cfg, err := LoadFromFile(writeConfig(t, validYAML))
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
}

func TestLoadFromFile_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		expected string
	}{
		{
			name:     "missing broker",
			yaml:     "database:\n  postgres:\n    host: h\n",
			expected: "camunda.broker_address is required",
		},
		{
			name: "missing minio",
			yaml: `
camunda: {broker_address: b}
database:
  postgres: {host: h, database: d, user: u}
  redis: {address: r}
`,
			expected: "storage.minio",
		},
		{
			name: "email without sender",
			yaml: `
camunda: {broker_address: b}
database:
  postgres: {host: h, database: d, user: u}
  redis: {address: r}
storage:
  minio: {endpoint: m, bucket: b}
notifications:
  email: {enabled: true}
`,
			expected: "from_email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromFile(writeConfig(t, tt.yaml))
			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expected)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestGetWorkerConfig(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"render-form": {Enabled: false, MaxJobsActive: 2},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "render-form"))
	assert.Equal(t, 2, GetWorkerConfig(cfg, "render-form").MaxJobsActive)

	fallback := GetWorkerConfig(cfg, "compare-answers")
	assert.True(t, fallback.Enabled)
	assert.Equal(t, 30000, fallback.Timeout)
	assert.Equal(t, 30*time.Second, GetDuration(fallback.Timeout))
}
