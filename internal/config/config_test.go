package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaultConfig_IsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intake.yaml")
	yaml := `
server:
  addr: ":9090"
payments:
  disabled: true
verification:
  base_url: https://verify.example/api
  token_url: https://verify.example/token
  client_id: intake
  timeout: 5s
outbox:
  max_attempts:
    email.send: 4
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.Payments.Disabled)
	assert.Equal(t, 5*time.Second, cfg.Verification.Timeout)
	assert.Equal(t, 4, cfg.Outbox.MaxAttempts["email.send"])
	// untouched sections keep their defaults
	assert.Equal(t, "gbp", cfg.Payments.Currency)
	assert.Equal(t, 20, cfg.Outbox.BatchSize)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"INTAKE_PAYMENTS_DISABLED": "true",
		"INTAKE_DB_PATH":           "/tmp/x.db",
		"INTAKE_HTTP_ADDR":         ":1234",
		"INTAKE_EMAIL_DEBUG":       "1",
		"INTAKE_NATS_URL":          "nats://localhost:4222",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.Payments.Disabled)
	assert.True(t, cfg.Email.Debug)
	assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	assert.Equal(t, ":1234", cfg.Server.Addr)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestApplyEnv_InvalidBool(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{"INTAKE_PAYMENTS_DISABLED": "maybe"}))
	assert.ErrorContains(t, err, "INTAKE_PAYMENTS_DISABLED")
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "loud"
	cfg.Outbox.BatchSize = 0
	cfg.Verification.BaseURL = "https://verify.example"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "log.level")
	assert.ErrorContains(t, err, "outbox.batch_size")
	assert.ErrorContains(t, err, "verification.token_url")
	assert.ErrorContains(t, err, "verification.client_id")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intake.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: from-file.db\n"), 0644))

	cfg, err := Load(path, envMap(map[string]string{"INTAKE_DB_PATH": "from-env.db"}))
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.Database.Path)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("", envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Addr, cfg.Server.Addr)
}
