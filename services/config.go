package services

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config is the service configuration. Values come from defaults, then an
// optional YAML file, then environment variables.
type Config struct {
	Port     string         `mapstructure:"port"`
	BaseURL  string         `mapstructure:"base_url"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Reset    ResetConfig    `mapstructure:"reset"`
	Sync     SyncConfig     `mapstructure:"sync"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type ResetConfig struct {
	// CronSecret, when set, must be presented as a bearer token to trigger
	// the bulk reset over HTTP.
	CronSecret    string        `mapstructure:"cron_secret"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	Nightly       bool          `mapstructure:"nightly"`
}

type SyncConfig struct {
	DesktopDebounce time.Duration `mapstructure:"desktop_debounce"`
	MobileDebounce  time.Duration `mapstructure:"mobile_debounce"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

const defaultJWTSecret = "your-default-secret-key-change-in-production"

// env names kept from earlier releases of the service.
var envBindings = map[string]string{
	"port":                 "PORT",
	"base_url":             "BASE_URL",
	"auth.jwt_secret":      "JWT_SECRET",
	"auth.token_ttl":       "TOKEN_TTL",
	"database.driver":      "DATABASE_DRIVER",
	"database.dsn":         "DATABASE_DSN",
	"smtp.host":            "SMTP_HOST",
	"smtp.port":            "SMTP_PORT",
	"smtp.username":        "SMTP_USERNAME",
	"smtp.password":        "SMTP_PASSWORD",
	"smtp.from":            "SMTP_FROM",
	"reset.cron_secret":    "RESET_CRON_SECRET",
	"reset.check_interval": "RESET_CHECK_INTERVAL",
	"reset.nightly":        "RESET_NIGHTLY",
	"cors.allowed_origins": "CORS_ALLOWED_ORIGINS",
}

// LoadConfig reads configuration from path, if given, and the environment.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("port", "3001")
	v.SetDefault("base_url", "")
	v.SetDefault("auth.jwt_secret", defaultJWTSecret)
	v.SetDefault("auth.token_ttl", 7*24*time.Hour)
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "./bizquest.db")
	v.SetDefault("reset.check_interval", time.Minute)
	v.SetDefault("reset.nightly", true)
	v.SetDefault("sync.desktop_debounce", time.Second)
	v.SetDefault("sync.mobile_debounce", 2*time.Second)
	v.SetDefault("cors.allowed_origins", []string{"*"})

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
