package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the API and supporting services.
type Config struct {
	ListenAddr      string
	LogLevel        string
	DatabaseDriver  string
	DatabaseDSN     string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	AdminPassword       string
	AdminRatePerSecond  float64
	AdminRateBurst      int
	CORSAllowedOrigins  []string
	MainDomains         []string
	MainDomainSuffixes  []string
	TenantCacheTTL      time.Duration
	DefaultPrimaryColor string
	DefaultSecondary    string
	DefaultCompanyName  string

	StripeSecretKey     string
	StripeWebhookSecret string
	StripeCurrency      string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string

	TelegramBotToken     string
	TelegramNotifyChatID int64

	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	S3Prefix        string

	QuoteBaseFee    float64
	QuotePerKm      float64
	QuoteMinimumFee float64
}

// BillingEnabled reports whether Stripe credentials are configured.
func (c Config) BillingEnabled() bool {
	return c.StripeSecretKey != ""
}

// StorageEnabled reports whether logo uploads can reach an S3 bucket.
func (c Config) StorageEnabled() bool {
	return c.S3Bucket != "" && c.S3Region != "" && c.S3AccessKey != "" && c.S3SecretKey != "" && c.S3PublicBaseURL != ""
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr:          getEnv("LISTEN_ADDR", ":8080"),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		DatabaseDriver:      strings.ToLower(getEnv("DATABASE_DRIVER", "mysql")),
		RequestTimeout:      time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 15)),
		ShutdownTimeout:     time.Second * time.Duration(getInt("SHUTDOWN_TIMEOUT_SECONDS", 10)),
		AdminRatePerSecond:  getFloat("ADMIN_RATE_PER_SECOND", 5),
		AdminRateBurst:      getInt("ADMIN_RATE_BURST", 10),
		CORSAllowedOrigins:  getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		MainDomains:         getList("MAIN_DOMAINS", []string{"localhost", "127.0.0.1", "guinchofacil.com.br", "www.guinchofacil.com.br"}),
		MainDomainSuffixes:  getList("MAIN_DOMAIN_SUFFIXES", []string{"lovable.app", "lovableproject.com"}),
		TenantCacheTTL:      time.Second * time.Duration(getInt("TENANT_CACHE_TTL_SECONDS", 60)),
		DefaultPrimaryColor: getEnv("DEFAULT_PRIMARY_COLOR", "#6366f1"),
		DefaultSecondary:    getEnv("DEFAULT_SECONDARY_COLOR", "#8b5cf6"),
		DefaultCompanyName:  getEnv("DEFAULT_COMPANY_NAME", "Guincho Fácil"),
		StripeCurrency:      strings.ToLower(getEnv("STRIPE_CURRENCY", "brl")),
		CheckoutSuccessURL:  getEnv("CHECKOUT_SUCCESS_URL", "https://guinchofacil.com.br/painel?checkout=success"),
		CheckoutCancelURL:   getEnv("CHECKOUT_CANCEL_URL", "https://guinchofacil.com.br/painel?checkout=cancel"),
		S3Endpoint:          getEnv("S3_ENDPOINT", ""),
		S3Region:            os.Getenv("S3_REGION"),
		S3AccessKey:         os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:         os.Getenv("S3_SECRET_KEY"),
		S3Bucket:            os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:     os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:      getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:            getEnv("S3_PREFIX", "logos"),
		QuoteBaseFee:        getFloat("QUOTE_BASE_FEE", 80),
		QuotePerKm:          getFloat("QUOTE_PER_KM", 4.5),
		QuoteMinimumFee:     getFloat("QUOTE_MINIMUM_FEE", 120),
	}

	cfg.DatabaseDSN = os.Getenv("DATABASE_DSN")
	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	cfg.StripeSecretKey = os.Getenv("STRIPE_SECRET_KEY")
	cfg.StripeWebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramNotifyChatID = getInt64("TELEGRAM_NOTIFY_CHAT_ID", 0)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var missing []string
	if c.DatabaseDSN == "" {
		missing = append(missing, "DATABASE_DSN")
	}
	if c.AdminPassword == "" {
		missing = append(missing, "ADMIN_PASSWORD")
	}
	if c.StripeSecretKey != "" && c.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if c.TelegramBotToken != "" && c.TelegramNotifyChatID == 0 {
		missing = append(missing, "TELEGRAM_NOTIFY_CHAT_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}

	switch c.DatabaseDriver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.CheckoutSuccessURL != "" {
		if _, err := url.ParseRequestURI(c.CheckoutSuccessURL); err != nil {
			return fmt.Errorf("invalid CHECKOUT_SUCCESS_URL: %w", err)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// getList splits a comma separated variable, dropping blanks.
func getList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// loadEnvFile loads the first env file found. Running without one is fine when the
// environment is already populated (containers, CI).
func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	return nil
}
