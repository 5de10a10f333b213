// Package config loads service configuration from an optional YAML file and
// the environment. Priority: ENV > YAML > env-default tags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Lending  LendingConfig  `yaml:"lending"`
	Notify   NotifyConfig   `yaml:"notify"`
	Media    MediaConfig    `yaml:"media"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr              string        `yaml:"addr"                env:"POSOJA_ADDR"                env-default:":8080"`
	PublicURL         string        `yaml:"public_url"          env:"POSOJA_PUBLIC_URL"          env-default:"http://localhost:8080"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"POSOJA_READ_HEADER_TIMEOUT" env-default:"10s"`
	ReadTimeout       time.Duration `yaml:"read_timeout"        env:"POSOJA_READ_TIMEOUT"        env-default:"30s"`
	WriteTimeout      time.Duration `yaml:"write_timeout"       env:"POSOJA_WRITE_TIMEOUT"       env-default:"60s"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"        env:"POSOJA_IDLE_TIMEOUT"        env-default:"120s"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"    env:"POSOJA_SHUTDOWN_TIMEOUT"    env-default:"10s"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path" env:"POSOJA_DB" env-default:"posoja.sqlite3"`
}

// AuthConfig holds session settings. An empty JWTSecret means the secret is
// generated once and kept in the database.
type AuthConfig struct {
	JWTSecret          string        `yaml:"jwt_secret"           env:"POSOJA_JWT_SECRET"`
	TokenTTL           time.Duration `yaml:"token_ttl"            env:"POSOJA_TOKEN_TTL"            env-default:"168h"`
	TokenPurgeInterval time.Duration `yaml:"token_purge_interval" env:"POSOJA_TOKEN_PURGE_INTERVAL" env-default:"6h"`
	AdminUsername      string        `yaml:"admin_username"       env:"POSOJA_ADMIN_USERNAME"       env-default:"Admin"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"POSOJA_LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"POSOJA_LOG_FORMAT" env-default:"text"`
	File   string `yaml:"file"   env:"POSOJA_LOG_FILE"`
}

// LendingConfig holds borrow policy settings. ReminderRepeat is the wait
// before reminding about the same overdue loan again; zero reminds once.
type LendingConfig struct {
	DefaultTrustScore int           `yaml:"default_trust_score" env:"POSOJA_DEFAULT_TRUST_SCORE" env-default:"100"`
	MinTrustScore     int           `yaml:"min_trust_score"     env:"POSOJA_MIN_TRUST_SCORE"     env-default:"0"`
	ReturnTrustBonus  int           `yaml:"return_trust_bonus"  env:"POSOJA_RETURN_TRUST_BONUS"  env-default:"1"`
	ReminderInterval  time.Duration `yaml:"reminder_interval"   env:"POSOJA_REMINDER_INTERVAL"   env-default:"1h"`
	ReminderRepeat    time.Duration `yaml:"reminder_repeat"     env:"POSOJA_REMINDER_REPEAT"     env-default:"24h"`
}

// NotifyConfig holds notification dispatch settings.
type NotifyConfig struct {
	Workers     int           `yaml:"workers"      env:"POSOJA_NOTIFY_WORKERS"      env-default:"2"`
	QueueSize   int           `yaml:"queue_size"   env:"POSOJA_NOTIFY_QUEUE_SIZE"   env-default:"256"`
	SendTimeout time.Duration `yaml:"send_timeout" env:"POSOJA_NOTIFY_SEND_TIMEOUT" env-default:"10s"`
}

// MediaConfig holds upload settings.
type MediaConfig struct {
	Dir          string `yaml:"dir"           env:"POSOJA_MEDIA_DIR"           env-default:"media"`
	MaxBytes     int64  `yaml:"max_bytes"     env:"POSOJA_MEDIA_MAX_BYTES"     env-default:"33554432"`
	MaxDimension int    `yaml:"max_dimension" env:"POSOJA_MEDIA_MAX_DIMENSION" env-default:"1024"`
	JPEGQuality  int    `yaml:"jpeg_quality"  env:"POSOJA_MEDIA_JPEG_QUALITY"  env-default:"85"`
}

// Load reads path when it is non-empty, otherwise only the environment and
// defaults, then validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if u, err := url.Parse(c.Server.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("server.public_url must be an absolute URL (got %q)", c.Server.PublicURL))
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least 32 characters (got %d)", len(c.Auth.JWTSecret)))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Auth.TokenPurgeInterval <= 0 {
		errs = append(errs, errors.New("auth.token_purge_interval must be positive"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json (got %q)", c.Log.Format))
	}
	if c.Lending.ReminderInterval <= 0 {
		errs = append(errs, errors.New("lending.reminder_interval must be positive"))
	}
	if c.Lending.ReminderRepeat < 0 {
		errs = append(errs, errors.New("lending.reminder_repeat must be >= 0"))
	}
	if c.Lending.ReturnTrustBonus < 0 {
		errs = append(errs, errors.New("lending.return_trust_bonus must be >= 0"))
	}
	if c.Notify.Workers <= 0 || c.Notify.QueueSize <= 0 {
		errs = append(errs, errors.New("notify.workers and notify.queue_size must be positive"))
	}
	if c.Media.Dir == "" {
		errs = append(errs, errors.New("media.dir is required"))
	}
	if c.Media.JPEGQuality < 1 || c.Media.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("media.jpeg_quality must be 1-100 (got %d)", c.Media.JPEGQuality))
	}

	return errors.Join(errs...)
}

// SlogLevel parses the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// ResponseLink returns the public URL lenders open to answer a request.
func (s ServerConfig) ResponseLink(token string) string {
	return strings.TrimRight(s.PublicURL, "/") + "/api/respond/" + token
}
