package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, env := range []string{"PORT", "DATABASE_DRIVER", "TOKEN_TTL", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(env, "")
	}

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, time.Minute, cfg.Reset.CheckInterval)
	assert.True(t, cfg.Reset.Nightly)
	assert.Equal(t, time.Second, cfg.Sync.DesktopDebounce)
	assert.Equal(t, 2*time.Second, cfg.Sync.MobileDebounce)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bizquest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
database:
  driver: postgres
  dsn: postgres://localhost/quest?sslmode=disable
sync:
  mobile_debounce: 3s
reset:
  cron_secret: from-file
`), 0o600))

	t.Setenv("PORT", "8080")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port, "env wins over file")
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/quest?sslmode=disable", cfg.Database.DSN)
	assert.Equal(t, 3*time.Second, cfg.Sync.MobileDebounce)
	assert.Equal(t, "from-file", cfg.Reset.CronSecret)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unclosed"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
