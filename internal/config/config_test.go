package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "./data/aquaguard.db", cfg.Store.SQLitePath)
	assert.Equal(t, "aquaguard_", cfg.Store.DynamoTablePrefix)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 20, cfg.PledgeRateLimit)
	assert.False(t, cfg.SeedDefaults)
	assert.False(t, cfg.TrustedProxy)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aquaguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":9000"
log_level: debug
store:
  driver: mongo
  mongo_database: pledges
auth:
  token_ttl: 2h
  admin_emails: [admin@example.com]
`), 0o600))

	t.Setenv("AQUAGUARD_LOG_LEVEL", "warn")
	t.Setenv("AQUAGUARD_PLEDGE_RATE_LIMIT", "0")
	t.Setenv("AQUAGUARD_TRUSTED_PROXY", "true")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path, "--listen-addr", ":9100"}))

	cfg, err := Load(fs)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.ListenAddr, "flag beats file")
	assert.Equal(t, "warn", cfg.LogLevel, "env beats file")
	assert.Equal(t, DriverMongo, cfg.Store.Driver)
	assert.Equal(t, "pledges", cfg.Store.MongoDatabase)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"admin@example.com"}, cfg.Auth.AdminEmails)
	assert.Equal(t, 0, cfg.PledgeRateLimit)
	assert.True(t, cfg.TrustedProxy)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown driver", env: map[string]string{"AQUAGUARD_STORE_DRIVER": "postgres"}},
		{name: "zero ttl", env: map[string]string{"AQUAGUARD_AUTH_TOKEN_TTL": "0s"}},
		{name: "negative rate limit", env: map[string]string{"AQUAGUARD_PLEDGE_RATE_LIMIT": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(nil)
			assert.ErrorContains(t, err, "invalid configuration")
		})
	}
}
