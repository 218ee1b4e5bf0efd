package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrBusy means the lock was still held by someone else after MaxWait.
	ErrBusy = errors.New("lock: resource busy")
	// ErrLost is the context cause seen by a callback whose lease could not be
	// renewed.
	ErrLost = errors.New("lock: lease lost")
)

const (
	defaultTTL     = 30 * time.Second
	defaultBackoff = 50 * time.Millisecond
)

var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// Locker is a Redis lease lock. Configurator session writes and contract
// webhook deliveries are serialised through it.
type Locker struct {
	R            *redis.Client
	RetryBackoff time.Duration
	// MaxWait bounds how long WithLock polls before returning ErrBusy. Zero
	// waits until ctx is done.
	MaxWait time.Duration
}

func SessionKey(sessionID string) string { return "lock:session:" + sessionID }

func DeliveryKey(contractID string) string { return "lock:delivery:" + contractID }

// WithLock runs fn while holding key. The lease is renewed every ttl/3 while
// fn runs; if renewal fails the context passed to fn is cancelled with ErrLost.
// The lease is released when fn returns, only if this caller still owns it.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	token := uuid.NewString()
	if err := l.acquire(ctx, key, token, ttl); err != nil {
		return err
	}
	defer func() {
		if err := releaseScript.Run(context.WithoutCancel(ctx), l.R, []string{key}, token).Err(); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("lock", key).Msg("lock release failed")
		}
	}()

	fnCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := make(chan struct{})
	defer close(stop)
	go l.renew(fnCtx, cancel, stop, key, token, ttl)

	return fn(fnCtx)
}

func (l Locker) acquire(ctx context.Context, key, token string, ttl time.Duration) error {
	backoff := l.RetryBackoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	var deadline <-chan time.Time
	if l.MaxWait > 0 {
		t := time.NewTimer(l.MaxWait)
		defer t.Stop()
		deadline = t.C
	}
	for {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		wait := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			wait.Stop()
			return ctx.Err()
		case <-deadline:
			wait.Stop()
			return ErrBusy
		case <-wait.C:
		}
	}
}

func (l Locker) renew(ctx context.Context, cancel context.CancelCauseFunc, stop <-chan struct{}, key, token string, ttl time.Duration) {
	interval := ttl / 3
	if interval <= 0 {
		interval = ttl
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-tick.C:
			n, err := renewScript.Run(ctx, l.R, []string{key}, token, ttl.Milliseconds()).Int()
			if err == nil && n == 1 {
				continue
			}
			zerolog.Ctx(ctx).Warn().Err(err).Str("lock", key).Msg("lock lease lost")
			cancel(ErrLost)
			return
		}
	}
}
