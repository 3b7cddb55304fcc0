package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: "9090"
database:
  host: db.internal
  port: 5432
  user: app
  password: secret
  dbname: followup
redis:
  host: cache.internal
  port: 6379
twilio:
  account_sid: AC123
  auth_token: token
  from_number: "+10000000000"
genai:
  api_key: sk-test
  model: gpt-4o-mini
followup:
  delay: 5m
  ack_message: "Merci !"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "AC123", cfg.Twilio.AccountSID)
	assert.Equal(t, 5*time.Minute, cfg.FollowUp.Delay)
	assert.Equal(t, "Merci !", cfg.FollowUp.AckMessage)
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfigFile(t, `
database:
  host: localhost
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 20*time.Minute, cfg.FollowUp.Delay)
	assert.Contains(t, cfg.FollowUp.AckMessage, "Merci pour votre message")
	assert.Equal(t, "gpt-4o-mini", cfg.GenAI.Model)
	assert.Equal(t, uint32(3), cfg.Twilio.CircuitBreaker.MaxRequests)
	assert.Equal(t, 0.6, cfg.Twilio.CircuitBreaker.FailureRatio)
	assert.Equal(t, 100, cfg.Middleware.RateLimit)
	assert.True(t, cfg.Middleware.EnableCORS)
}

func TestLoadConfig_RejectsNonPositiveDelay(t *testing.T) {
	path := writeConfigFile(t, `
followup:
  delay: 0s
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delay")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "app",
		Password: "secret",
		DBName:   "followup",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=app password=secret dbname=followup sslmode=disable",
		cfg.GetDSN())
}
