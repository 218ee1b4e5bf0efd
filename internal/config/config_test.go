package config

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://localhost/plans",
		"REDIS_URL":    "redis://localhost:6379/0",
		"JWT_SECRET":   "secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, http.SameSiteLaxMode, cfg.CookieSameSite)
	require.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
	require.Equal(t, 3, cfg.OTPSendMax)
	require.True(t, cfg.AuditEnabled)
	require.False(t, cfg.TwilioEnabled())
	require.False(t, cfg.ArchiveEnabled())
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = ":9090"
	env["TWILIO_ACCOUNT_SID"] = "AC123"
	env["TWILIO_AUTH_TOKEN"] = "token"
	env["TWILIO_VERIFY_SERVICE_SID"] = "VA123"
	env["ARCHIVE_S3_BUCKET"] = "contracts"
	env["OTP_SEND_MAX"] = "5"
	env["COOKIE_SAMESITE"] = "strict"
	env["AUDIT_ENABLED"] = "false"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.True(t, cfg.TwilioEnabled())
	require.True(t, cfg.ArchiveEnabled())
	require.Equal(t, 5, cfg.OTPSendMax)
	require.Equal(t, http.SameSiteStrictMode, cfg.CookieSameSite)
	require.False(t, cfg.AuditEnabled)
}

func TestLoadRequiresSecrets(t *testing.T) {
	env := baseEnv()
	env["JWT_SECRET"] = ""
	_, err := LoadForTests(env)
	require.EqualError(t, err, "JWT_SECRET is required")
}

func TestLoadReportsEveryProblem(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL":         "",
		"REDIS_URL":            "",
		"JWT_SECRET":           "",
		"CONTRACT_WEBHOOK_URL": "https://crm.example.com/hooks/contract",
		"COOKIE_SAMESITE":      "none",
		"COOKIE_SECURE":        "false",
	})
	require.Error(t, err)
	for _, want := range []string{"DATABASE_URL", "REDIS_URL", "JWT_SECRET", "CONTRACT_WEBHOOK_SECRET", "COOKIE_SECURE"} {
		require.ErrorContains(t, err, want)
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	env := baseEnv()
	env["CATALOG_CACHE_TTL"] = "five minutes"
	env["OTP_SEND_MAX"] = "many"
	env["AUDIT_ENABLED"] = "sometimes"
	env["CORS_ALLOWED_ORIGINS"] = " https://a.example.com , ,https://b.example.com"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
	require.Equal(t, 3, cfg.OTPSendMax)
	require.True(t, cfg.AuditEnabled)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
}
