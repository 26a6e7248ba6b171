package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

type Config struct {
	Env            string `yaml:"env"`
	LogLevel       string `yaml:"log_level"`
	MigrationsPath string `yaml:"migrations_path"`
	HTTPServer     `yaml:"http_server"`
	Postgres       `yaml:"postgres"`
	Shortener      `yaml:"shortener"`
	Telegram       `yaml:"telegram"`
	Limits         `yaml:"limits"`
	Policy         `yaml:"policy"`
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Postgres struct {
	User            string        `yaml:"user" validate:"required"`
	Password        string        `yaml:"password" validate:"required"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DB              string        `yaml:"db" validate:"required"`
	SSLMode         string        `yaml:"sslmode"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

// Shortener configures the external AdLinkFly-compatible shortening service.
type Shortener struct {
	BaseURL      string        `yaml:"base_url" validate:"required,url"`
	APIKey       string        `yaml:"api_key" validate:"required"`
	APIPath      string        `yaml:"api_path"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetryTime time.Duration `yaml:"max_retry_time"`
}

var defaultShortener = Shortener{
	APIPath:      "/api",
	Timeout:      20 * time.Second,
	MaxRetryTime: 30 * time.Second,
}

// Telegram holds fields consumed by the chat transport, which lives outside
// this service. They are part of the shared config file.
type Telegram struct {
	Token      string `yaml:"token"`
	InlineMode bool   `yaml:"inline_mode"`
}

type Limits struct {
	RatePerMinute int `yaml:"rate_per_minute" validate:"gt=0"`
	MaxBatch      int `yaml:"max_batch" validate:"gt=0"`
}

var defaultLimits = Limits{
	RatePerMinute: 20,
	MaxBatch:      5,
}

// Policy holds the admission lists. Empty lists disable the corresponding
// rule. AdminUserIDs gates admin commands in the chat transport and is not
// read by this service.
type Policy struct {
	AllowedUserIDs   []int64  `yaml:"allowed_user_ids"`
	AdminUserIDs     []int64  `yaml:"admin_user_ids"`
	WhitelistDomains []string `yaml:"whitelist_domains"`
	BlacklistDomains []string `yaml:"blacklist_domains"`
}

// SlogLevel maps the configured log level onto a slog level.
// Unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads the config file at path, applies environment overrides for
// secrets and validates the result. Domains are normalized to lower case.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
	}
	defer f.Close()

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %w", op, err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.LogLevel = "info"
	cfg.MigrationsPath = "file://migrations"
	cfg.HTTPServer = defaultHTTPServer
	cfg.Postgres = defaultPostgres
	cfg.Shortener = defaultShortener
	cfg.Limits = defaultLimits
}

// applyEnvOverrides lets secrets come from the environment (or a .env file)
// instead of the config file, matching how deployments inject credentials.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ADLINKFLY_API_KEY"); v != "" {
		cfg.Shortener.APIKey = v
	}
	if v := os.Getenv("ADLINKFLY_BASE_URL"); v != "" {
		cfg.Shortener.BaseURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
}

func normalize(cfg *Config) {
	cfg.Shortener.BaseURL = strings.TrimRight(cfg.Shortener.BaseURL, "/")
	if !strings.HasPrefix(cfg.Shortener.APIPath, "/") {
		cfg.Shortener.APIPath = "/" + cfg.Shortener.APIPath
	}

	for i, d := range cfg.Policy.WhitelistDomains {
		cfg.Policy.WhitelistDomains[i] = strings.ToLower(strings.TrimSpace(d))
	}
	for i, d := range cfg.Policy.BlacklistDomains {
		cfg.Policy.BlacklistDomains[i] = strings.ToLower(strings.TrimSpace(d))
	}
}
