// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Addr              string        `yaml:"addr"`
	SiteURL           string        `yaml:"site_url"` // public origin for redirect URLs
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	RequestTimeout    time.Duration `yaml:"request_timeout"` // non-streaming routes
	StreamTimeout     time.Duration `yaml:"stream_timeout"`  // generation stream
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // postgres|memory
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"` // empty disables rate limiting
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RateLimitConfig struct {
	Generations int           `yaml:"generations"` // per account per window, 0 disables
	Window      time.Duration `yaml:"window"`
}

type AIConfig struct {
	Provider        string  `yaml:"provider"` // azure|openai|gemini|noop
	AzureEndpoint   string  `yaml:"azure_endpoint"`
	AzureAPIKey     string  `yaml:"azure_api_key"`
	AzureDeployment string  `yaml:"azure_deployment"`
	AzureAPIVersion string  `yaml:"azure_api_version"`
	OpenAIKey       string  `yaml:"openai_key"`
	OpenAIBaseURL   string  `yaml:"openai_base_url"`
	GeminiKey       string  `yaml:"gemini_key"`
	DefaultModel    string  `yaml:"default_model"`
	ConcurrentLimit int     `yaml:"concurrent_limit"` // max concurrent upstream streams
	Temperature     float64 `yaml:"temperature"`
	TopP            float64 `yaml:"top_p"`
	MaxTokens       int     `yaml:"max_tokens"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	PriceCreator  string `yaml:"price_creator"`
	PricePro      string `yaml:"price_pro"`
	PriceBusiness string `yaml:"price_business"`
}

type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret"` // HS256 secret of the auth provider
	CookieName string `yaml:"cookie_name"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	AI        AIConfig        `yaml:"ai"`
	Stripe    StripeConfig    `yaml:"stripe"`
	Auth      AuthConfig      `yaml:"auth"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, loads a .env file when present and
// lets environment variables override secrets. A missing default config file
// is not an error.
func LoadConfig(path string, dev bool) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.SiteURL == "" {
		cfg.HTTP.SiteURL = "http://localhost:3000"
	}
	cfg.HTTP.SiteURL = strings.TrimRight(cfg.HTTP.SiteURL, "/")
	cfg.HTTP.ReadHeaderTimeout = orDuration(cfg.HTTP.ReadHeaderTimeout, 10*time.Second)
	cfg.HTTP.RequestTimeout = orDuration(cfg.HTTP.RequestTimeout, 30*time.Second)
	cfg.HTTP.StreamTimeout = orDuration(cfg.HTTP.StreamTimeout, 3*time.Minute)
	cfg.HTTP.ShutdownTimeout = orDuration(cfg.HTTP.ShutdownTimeout, 15*time.Second)

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.RateLimit.Window = orDuration(cfg.RateLimit.Window, time.Minute)

	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "azure"
	}
	if cfg.AI.AzureAPIVersion == "" {
		cfg.AI.AzureAPIVersion = "2024-08-01-preview"
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.AI.Temperature <= 0 {
		cfg.AI.Temperature = 0.7
	}
	if cfg.AI.TopP <= 0 {
		cfg.AI.TopP = 0.95
	}
	if cfg.AI.MaxTokens <= 0 {
		cfg.AI.MaxTokens = 2000
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "sb-access-token"
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.HTTP.SiteURL, "SITE_URL")
	setString(&cfg.HTTP.Addr, "HTTP_ADDR")
	setString(&cfg.AI.AzureEndpoint, "AZURE_OPENAI_ENDPOINT")
	setString(&cfg.AI.AzureAPIKey, "AZURE_OPENAI_API_KEY")
	setString(&cfg.AI.AzureDeployment, "AZURE_OPENAI_DEPLOYMENT")
	setString(&cfg.AI.OpenAIKey, "OPENAI_API_KEY")
	setString(&cfg.AI.GeminiKey, "GEMINI_API_KEY")
	setString(&cfg.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	setString(&cfg.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	setString(&cfg.Stripe.PriceCreator, "STRIPE_PRICE_CREATOR")
	setString(&cfg.Stripe.PricePro, "STRIPE_PRICE_PRO")
	setString(&cfg.Stripe.PriceBusiness, "STRIPE_PRICE_BUSINESS")
	setString(&cfg.Auth.JWTSecret, "AUTH_JWT_SECRET")
	if v, ok := os.LookupEnv("AI_CONCURRENT_LIMIT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AI.ConcurrentLimit = n
		}
	}
}

// Validate reports the first missing required setting.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Stripe.SecretKey == "" && !c.Runtime.Dev {
		return errors.New("stripe.secret_key is required")
	}
	switch c.AI.Provider {
	case "azure":
		if c.AI.AzureEndpoint == "" || c.AI.AzureAPIKey == "" || c.AI.AzureDeployment == "" {
			return errors.New("ai.azure_endpoint, ai.azure_api_key and ai.azure_deployment are required")
		}
	case "openai":
		if c.AI.OpenAIKey == "" {
			return errors.New("ai.openai_key is required")
		}
	case "gemini":
		if c.AI.GeminiKey == "" {
			return errors.New("ai.gemini_key is required")
		}
	case "noop":
		if !c.Runtime.Dev {
			return errors.New("ai.provider noop is only allowed in dev mode")
		}
	default:
		return fmt.Errorf("ai.provider %q is not supported", c.AI.Provider)
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
