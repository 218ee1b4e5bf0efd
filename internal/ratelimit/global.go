package ratelimit

import (
	"fmt"
	"net/http"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/plan-configurator/internal/common"
)

// GlobalConfig configures the fixed-window per-IP limit applied to the public API.
type GlobalConfig struct {
	// Rate uses the limiter formatted notation, e.g. "300-M".
	Rate    string
	Prefix  string
	OnError func(error)
}

// NewGlobal builds a per-client-IP middleware backed by the Redis limiter store.
func NewGlobal(rdb *redis.Client, cfg GlobalConfig) (func(http.Handler) http.Handler, error) {
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		return nil, fmt.Errorf("parse global rate %q: %w", cfg.Rate, err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "ratelimit:global"
	}
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("limiter store: %w", err)
	}
	mw := stdlib.NewMiddleware(limiter.New(store, rate),
		stdlib.WithKeyGetter(common.ClientIP),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, _ *http.Request) {
			common.JSONError(w, http.StatusTooManyRequests, common.CodeRateLimited, "rate limit exceeded", nil)
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			if cfg.OnError != nil {
				cfg.OnError(err)
			}
			common.JSONError(w, http.StatusServiceUnavailable, "RATE_LIMIT_UNAVAILABLE", "rate limiter unavailable", nil)
		}),
	)
	return mw.Handler, nil
}
