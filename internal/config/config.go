package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	DBAutoMigrate      bool
	RedisURL           string
	JWTSecret          string
	CORSAllowedOrigins []string
	AccessTokenTTL     time.Duration
	CookieName         string
	CookieDomain       string
	CookieSecure       bool
	CookieSameSite     http.SameSite

	CatalogCacheTTL time.Duration
	SessionTTL      time.Duration
	IdempotencyTTL  time.Duration
	BodyLimitBytes  int64
	GlobalRateLimit string

	TwilioAccountSID       string
	TwilioAuthToken        string
	TwilioVerifyServiceSID string
	TwilioBaseURL          string
	OTPTokenTTL            time.Duration
	OTPSendWindow          time.Duration
	OTPSendMax             int

	GeoapifyAPIKey   string
	GeoapifyBaseURL  string
	NBNLookupBaseURL string
	AddressCacheTTL  time.Duration
	UpstreamTimeout  time.Duration

	ContractWebhookURL      string
	ContractWebhookSecret   string
	WebhookRequestTimeout   time.Duration
	WebhookAllowInsecureTLS bool
	WebhookMaxRetry         int
	WebhookReplayTTL        time.Duration

	ArchiveS3Bucket    string
	ArchiveS3Endpoint  string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	AuditEnabled      bool
	AuditSamplingRate float64

	WorkerConcurrency int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	v := vars{k}

	cfg := &Config{
		AppEnv:             v.str("APP_ENV", "development"),
		Port:               v.str("PORT", "8080"),
		DatabaseURL:        v.str("DATABASE_URL", ""),
		DBAutoMigrate:      v.flag("DB_AUTO_MIGRATE", false),
		RedisURL:           v.str("REDIS_URL", ""),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: v.list("CORS_ALLOWED_ORIGINS"),
		AccessTokenTTL:     v.dur("ACCESS_TOKEN_TTL", 8*time.Hour),
		CookieName:         v.str("COOKIE_NAME", "admin_session"),
		CookieDomain:       v.str("COOKIE_DOMAIN", ""),
		CookieSecure:       v.flag("COOKIE_SECURE", false),
		CookieSameSite:     parseSameSite(v.str("COOKIE_SAMESITE", "lax")),

		CatalogCacheTTL: v.dur("CATALOG_CACHE_TTL", 5*time.Minute),
		SessionTTL:      v.dur("CONFIGURATOR_SESSION_TTL", 72*time.Hour),
		IdempotencyTTL:  v.dur("IDEMPOTENCY_TTL", 24*time.Hour),
		BodyLimitBytes:  int64(v.num("HTTP_BODY_LIMIT_BYTES", 1<<20)),
		GlobalRateLimit: v.str("RATE_LIMIT_GLOBAL", "300-M"),

		TwilioAccountSID:       v.str("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:        v.str("TWILIO_AUTH_TOKEN", ""),
		TwilioVerifyServiceSID: v.str("TWILIO_VERIFY_SERVICE_SID", ""),
		TwilioBaseURL:          v.str("TWILIO_VERIFY_BASE_URL", "https://verify.twilio.com/v2"),
		OTPTokenTTL:            v.dur("OTP_TOKEN_TTL", 30*time.Minute),
		OTPSendWindow:          v.dur("OTP_SEND_WINDOW", 10*time.Minute),
		OTPSendMax:             v.num("OTP_SEND_MAX", 3),

		GeoapifyAPIKey:   v.str("GEOAPIFY_API_KEY", ""),
		GeoapifyBaseURL:  v.str("GEOAPIFY_BASE_URL", "https://api.geoapify.com/v1"),
		NBNLookupBaseURL: v.str("NBN_LOOKUP_BASE_URL", ""),
		AddressCacheTTL:  v.dur("ADDRESS_CACHE_TTL", 24*time.Hour),
		UpstreamTimeout:  v.dur("UPSTREAM_TIMEOUT", 5*time.Second),

		ContractWebhookURL:      v.str("CONTRACT_WEBHOOK_URL", ""),
		ContractWebhookSecret:   k.String("CONTRACT_WEBHOOK_SECRET"),
		WebhookRequestTimeout:   v.dur("WEBHOOK_REQUEST_TIMEOUT", 10*time.Second),
		WebhookAllowInsecureTLS: v.flag("WEBHOOK_ALLOW_INSECURE_TLS", false),
		WebhookMaxRetry:         v.num("WEBHOOK_MAX_RETRY", 8),
		WebhookReplayTTL:        v.dur("WEBHOOK_REPLAY_TTL", 10*time.Minute),

		ArchiveS3Bucket:    v.str("ARCHIVE_S3_BUCKET", ""),
		ArchiveS3Endpoint:  v.str("ARCHIVE_S3_ENDPOINT", ""),
		AWSRegion:          v.str("AWS_REGION", "ap-southeast-2"),
		AWSAccessKeyID:     v.str("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: v.str("AWS_SECRET_ACCESS_KEY", ""),

		AuditEnabled:      v.flag("AUDIT_ENABLED", true),
		AuditSamplingRate: v.float("AUDIT_SAMPLING_RATE", 1),

		WorkerConcurrency: v.num("WORKER_CONCURRENCY", 10),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate reports every missing or inconsistent setting at once.
func (c *Config) validate() error {
	var errs []error
	for _, req := range []struct{ name, value string }{
		{"DATABASE_URL", c.DatabaseURL},
		{"REDIS_URL", c.RedisURL},
		{"JWT_SECRET", c.JWTSecret},
	} {
		if req.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", req.name))
		}
	}
	if c.ContractWebhookURL != "" && c.ContractWebhookSecret == "" {
		errs = append(errs, errors.New("CONTRACT_WEBHOOK_SECRET is required when CONTRACT_WEBHOOK_URL is set"))
	}
	if c.CookieSameSite == http.SameSiteNoneMode && !c.CookieSecure {
		errs = append(errs, errors.New("COOKIE_SAMESITE=none requires COOKIE_SECURE"))
	}
	if c.AuditSamplingRate < 0 || c.AuditSamplingRate > 1 {
		errs = append(errs, fmt.Errorf("AUDIT_SAMPLING_RATE must be within [0,1], got %v", c.AuditSamplingRate))
	}
	return errors.Join(errs...)
}

// TwilioEnabled reports whether all Verify credentials are present.
func (c *Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioVerifyServiceSID != ""
}

// ArchiveEnabled reports whether contract archival to S3 is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveS3Bucket != ""
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// vars reads typed values out of koanf. Blank or malformed values fall back.
type vars struct{ k *koanf.Koanf }

func (v vars) str(key, fallback string) string {
	if s := strings.TrimSpace(v.k.String(key)); s != "" {
		return s
	}
	return fallback
}

func (v vars) list(key string) []string {
	var out []string
	for _, part := range strings.Split(v.k.String(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (v vars) dur(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v.str(key, ""))
	if err != nil {
		return fallback
	}
	return d
}

func (v vars) flag(key string, fallback bool) bool {
	switch strings.ToLower(v.str(key, "")) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func (v vars) num(key string, fallback int) int {
	n, err := strconv.Atoi(v.str(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

func (v vars) float(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(v.str(key, ""), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(value) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// LoadForTests runs Load with env applied on top of the process environment
// and restores the previous values afterwards. An empty value unsets the key.
func LoadForTests(env map[string]string) (*Config, error) {
	restore := make(map[string]*string, len(env))
	for key, value := range env {
		if prev, ok := os.LookupEnv(key); ok {
			restore[key] = &prev
		} else {
			restore[key] = nil
		}
		if value == "" {
			_ = os.Unsetenv(key)
		} else {
			_ = os.Setenv(key, value)
		}
	}
	defer func() {
		for key, prev := range restore {
			if prev == nil {
				_ = os.Unsetenv(key)
			} else {
				_ = os.Setenv(key, *prev)
			}
		}
	}()
	return Load()
}
