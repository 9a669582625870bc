// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	OrderRateLimit  int           `yaml:"order_rate_limit"` // POST /order per IP per window
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL         string `yaml:"url"`
	AutoMigrate bool   `yaml:"auto_migrate"`
	MaxConns    int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type SiteConfig struct {
	BaseURL     string `yaml:"base_url"` // public storefront, used for return urls
	SuccessPath string `yaml:"success_path"`
	PendingPath string `yaml:"pending_path"`
	ErrorPath   string `yaml:"error_path"`
	AuthPath    string `yaml:"auth_path"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"` // AES key for LPA codes at rest
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	CookieName string        `yaml:"cookie_name"`
	TTL        time.Duration `yaml:"ttl"`
}

type CaptchaConfig struct {
	Secret   string  `yaml:"secret"`
	MinScore float64 `yaml:"min_score"`
	Disabled bool    `yaml:"disabled"`
}

type Invoice4UConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Email      string        `yaml:"email"`
	Password   string        `yaml:"password"`
	TerminalID string        `yaml:"terminal_id"`
	Timeout    time.Duration `yaml:"timeout"`
}

type PayPalConfig struct {
	BaseURL      string        `yaml:"base_url"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	Timeout      time.Duration `yaml:"timeout"`
}

type PaymentConfig struct {
	DefaultProvider string          `yaml:"default_provider"` // creditcard | paypal | noop
	Currency        string          `yaml:"currency"`
	Invoice4U       Invoice4UConfig `yaml:"invoice4u"`
	PayPal          PayPalConfig    `yaml:"paypal"`
	CaptureLockTTL  time.Duration   `yaml:"capture_lock_ttl"`
}

type KeepGoConfig struct {
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	AccessTok string        `yaml:"access_token"`
	Timeout   time.Duration `yaml:"timeout"`
	Noop      bool          `yaml:"noop"`
}

type ProvisioningConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type EmailConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	From       string `yaml:"from"` // whatsapp:+1...
	BaseURL    string `yaml:"base_url"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PublicBaseURL   string `yaml:"public_base_url"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type EventsConfig struct {
	AMQP AMQPConfig `yaml:"amqp"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type SchedulerConfig struct {
	PendingLineInterval time.Duration `yaml:"pending_line_interval"`
	LineSyncInterval    time.Duration `yaml:"line_sync_interval"`
	StaleSweepInterval  time.Duration `yaml:"stale_sweep_interval"`
	StaleOrderAfter     time.Duration `yaml:"stale_order_after"`
	MarketingInterval   time.Duration `yaml:"marketing_interval"`
	InvoiceInterval     time.Duration `yaml:"invoice_interval"`
	Workers             int           `yaml:"workers"`
	BatchSize           int           `yaml:"batch_size"`
}

type AbandonedCartConfig struct {
	Enabled bool            `yaml:"enabled"`
	Steps   []time.Duration `yaml:"steps"` // delays after order creation
}

type FeedbackConfig struct {
	Enabled bool          `yaml:"enabled"`
	After   time.Duration `yaml:"after"`
}

type MarketingConfig struct {
	AbandonedCart AbandonedCartConfig `yaml:"abandoned_cart"`
	Feedback      FeedbackConfig      `yaml:"feedback"`
}

type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	Log          LogConfig          `yaml:"log"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Site         SiteConfig         `yaml:"site"`
	Security     SecurityConfig     `yaml:"security"`
	Auth         AuthConfig         `yaml:"auth"`
	Captcha      CaptchaConfig      `yaml:"captcha"`
	Payment      PaymentConfig      `yaml:"payment"`
	KeepGo       KeepGoConfig       `yaml:"keepgo"`
	Provisioning ProvisioningConfig `yaml:"provisioning"`
	Email        EmailConfig        `yaml:"email"`
	Twilio       TwilioConfig       `yaml:"twilio"`
	Storage      StorageConfig      `yaml:"storage"`
	Events       EventsConfig       `yaml:"events"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Marketing    MarketingConfig    `yaml:"marketing"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig parses -config/-env/-dev flags and loads the file.
func LoadConfig() (*Config, error) {
	var configPath, envPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.StringVar(&envPath, "env", ".env", "optional dotenv file")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env: %w", err)
		}
	}
	return Load(configPath, dev)
}

// Load reads a YAML file, expands ${VAR} references from the environment,
// applies defaults and validates required keys.
func Load(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

func Parse(b []byte, dev bool) (*Config, error) {
	expanded := os.Expand(string(b), func(key string) string {
		name, def, hasDef := strings.Cut(key, ":-")
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v
		}
		if hasDef {
			return def
		}
		return ""
	})
	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Site.BaseURL == "" {
		return nil, errors.New("site.base_url is required")
	}
	if cfg.Captcha.MinScore < 0 || cfg.Captcha.MinScore > 1 {
		return nil, errors.New("captcha.min_score must be within [0,1]")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	cfg.HTTP.ReadTimeout = orDuration(cfg.HTTP.ReadTimeout, 10*time.Second)
	cfg.HTTP.WriteTimeout = orDuration(cfg.HTTP.WriteTimeout, 60*time.Second)
	cfg.HTTP.RequestTimeout = orDuration(cfg.HTTP.RequestTimeout, 45*time.Second)
	cfg.HTTP.ShutdownTimeout = orDuration(cfg.HTTP.ShutdownTimeout, 15*time.Second)
	cfg.HTTP.RateLimitWindow = orDuration(cfg.HTTP.RateLimitWindow, time.Minute)
	if cfg.HTTP.OrderRateLimit <= 0 {
		cfg.HTTP.OrderRateLimit = 10
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = orDuration(cfg.Redis.TTL, time.Hour)

	if cfg.Site.SuccessPath == "" {
		cfg.Site.SuccessPath = "/order/success"
	}
	if cfg.Site.PendingPath == "" {
		cfg.Site.PendingPath = "/order/pending"
	}
	if cfg.Site.ErrorPath == "" {
		cfg.Site.ErrorPath = "/error"
	}
	if cfg.Site.AuthPath == "" {
		cfg.Site.AuthPath = "/auth/signin"
	}

	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "session"
	}
	cfg.Auth.TTL = orDuration(cfg.Auth.TTL, 30*24*time.Hour)
	if cfg.Captcha.MinScore == 0 {
		cfg.Captcha.MinScore = 0.5
	}

	if cfg.Payment.DefaultProvider == "" {
		cfg.Payment.DefaultProvider = "creditcard"
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "ILS"
	}
	cfg.Payment.CaptureLockTTL = orDuration(cfg.Payment.CaptureLockTTL, 2*time.Minute)
	if cfg.Payment.Invoice4U.BaseURL == "" {
		cfg.Payment.Invoice4U.BaseURL = "https://api.invoice4u.co.il/Services/ApiService.svc"
	}
	cfg.Payment.Invoice4U.Timeout = orDuration(cfg.Payment.Invoice4U.Timeout, 20*time.Second)
	if cfg.Payment.PayPal.BaseURL == "" {
		cfg.Payment.PayPal.BaseURL = "https://api-m.sandbox.paypal.com"
	}
	cfg.Payment.PayPal.Timeout = orDuration(cfg.Payment.PayPal.Timeout, 20*time.Second)

	if cfg.KeepGo.BaseURL == "" {
		cfg.KeepGo.BaseURL = "https://myaccount.keepgo.com/api/v2"
	}
	cfg.KeepGo.Timeout = orDuration(cfg.KeepGo.Timeout, 20*time.Second)
	cfg.Provisioning.Timeout = orDuration(cfg.Provisioning.Timeout, 25*time.Second)

	if cfg.Email.BaseURL == "" {
		cfg.Email.BaseURL = "https://api.sendgrid.com"
	}
	if cfg.Twilio.BaseURL == "" {
		cfg.Twilio.BaseURL = "https://api.twilio.com"
	}
	if cfg.Events.AMQP.Exchange == "" {
		cfg.Events.AMQP.Exchange = "orders"
	}

	s := &cfg.Scheduler
	s.PendingLineInterval = orDuration(s.PendingLineInterval, 2*time.Minute)
	s.LineSyncInterval = orDuration(s.LineSyncInterval, 30*time.Minute)
	s.StaleSweepInterval = orDuration(s.StaleSweepInterval, 15*time.Minute)
	s.StaleOrderAfter = orDuration(s.StaleOrderAfter, 72*time.Hour)
	s.MarketingInterval = orDuration(s.MarketingInterval, 10*time.Minute)
	s.InvoiceInterval = orDuration(s.InvoiceInterval, 10*time.Minute)
	if s.Workers <= 0 {
		s.Workers = 4
	}
	if s.BatchSize <= 0 {
		s.BatchSize = 100
	}

	if len(cfg.Marketing.AbandonedCart.Steps) == 0 {
		cfg.Marketing.AbandonedCart.Steps = []time.Duration{time.Hour, 24 * time.Hour}
	}
	cfg.Marketing.Feedback.After = orDuration(cfg.Marketing.Feedback.After, 72*time.Hour)
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
