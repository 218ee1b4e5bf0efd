package otp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/plan-configurator/internal/common"
	"github.com/noah-isme/plan-configurator/internal/obs"
	"github.com/noah-isme/plan-configurator/internal/ratelimit"
)

// Customer kinds an OTP is issued for.
const (
	KindResidential = "residential"
	KindBusiness    = "business"
)

var (
	// ErrInvalidToken is returned when a verification token is unknown, expired or bound elsewhere.
	ErrInvalidToken = errors.New("otp: verification token invalid or expired")
	// ErrInvalidCode is returned when the provider did not approve the code.
	ErrInvalidCode = errors.New("otp: verification code rejected")

	e164 = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)
)

// SendInput requests a verification code.
type SendInput struct {
	Phone   string `json:"phone" validate:"required,max=32"`
	Channel string `json:"channel" validate:"omitempty,oneof=sms call"`
}

// VerifyInput submits a received code.
type VerifyInput struct {
	Phone string `json:"phone" validate:"required,max=32"`
	Code  string `json:"code" validate:"required,numeric,min=4,max=10"`
}

// SendResult is returned after a code was dispatched.
type SendResult struct {
	To      string `json:"to"`
	Channel string `json:"channel"`
	Status  string `json:"status"`
}

// VerifyResult carries the token that gates contract submission.
type VerifyResult struct {
	Verified  bool      `json:"verified"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RateLimiter bounds sends per phone number.
type RateLimiter interface {
	Allow(ctx context.Context, key string, window time.Duration, limit int) (bool, int, time.Time, error)
}

// Service issues and checks OTPs and mints verification tokens.
type Service struct {
	provider   Provider
	redis      *redis.Client
	limiter    RateLimiter
	tokenTTL   time.Duration
	sendWindow time.Duration
	sendMax    int
	now        func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Provider   Provider
	Redis      *redis.Client
	Limiter    RateLimiter
	TokenTTL   time.Duration
	SendWindow time.Duration
	SendMax    int
	Now        func() time.Time
}

type tokenClaims struct {
	Phone string `json:"phone"`
	Kind  string `json:"kind"`
}

// NewService constructs an OTP service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Provider == nil {
		return nil, errors.New("otp: provider is required")
	}
	if cfg.Redis == nil {
		return nil, errors.New("otp: redis client is required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	window := cfg.SendWindow
	if window <= 0 {
		window = 10 * time.Minute
	}
	sendMax := cfg.SendMax
	if sendMax <= 0 {
		sendMax = 3
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		provider:   cfg.Provider,
		redis:      cfg.Redis,
		limiter:    cfg.Limiter,
		tokenTTL:   ttl,
		sendWindow: window,
		sendMax:    sendMax,
		now:        now,
	}, nil
}

// Send dispatches a code to the phone, subject to the per-phone send limit.
func (s *Service) Send(ctx context.Context, kind string, in SendInput) (SendResult, error) {
	if err := common.ValidateStruct(in); err != nil {
		obs.ObserveOTP("send", "invalid")
		return SendResult{}, err
	}
	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		obs.ObserveOTP("send", "invalid")
		return SendResult{}, err
	}
	channel := in.Channel
	if channel == "" {
		channel = "sms"
	}

	if s.limiter != nil {
		allowed, _, reset, err := s.limiter.Allow(ctx, ratelimit.PhoneKey(kind, phone), s.sendWindow, s.sendMax)
		if err != nil {
			return SendResult{}, fmt.Errorf("otp rate limit: %w", err)
		}
		if !allowed {
			obs.ObserveOTP("send", "rate_limited")
			retry := max(ratelimit.RetryAfter(reset.Sub(s.now())), 1)
			return SendResult{}, &common.AppError{
				Code:       common.CodeRateLimited,
				Message:    "too many verification codes requested for this number",
				HTTPStatus: http.StatusTooManyRequests,
				Details:    map[string]any{"retryAfter": retry},
			}
		}
	}

	v, err := s.provider.Start(ctx, phone, channel)
	if err != nil {
		obs.ObserveOTP("send", "error")
		return SendResult{}, err
	}
	obs.ObserveOTP("send", "ok")
	return SendResult{To: phone, Channel: channel, Status: v.Status}, nil
}

// Verify checks a code and, when approved, returns a token bound to the phone and kind.
func (s *Service) Verify(ctx context.Context, kind string, in VerifyInput) (VerifyResult, error) {
	if err := common.ValidateStruct(in); err != nil {
		obs.ObserveOTP("check", "invalid")
		return VerifyResult{}, err
	}
	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		obs.ObserveOTP("check", "invalid")
		return VerifyResult{}, err
	}
	v, err := s.provider.Check(ctx, phone, in.Code)
	if err != nil {
		obs.ObserveOTP("check", "error")
		return VerifyResult{}, err
	}
	if !v.Approved() {
		obs.ObserveOTP("check", "rejected")
		return VerifyResult{}, ErrInvalidCode
	}

	token, err := newToken()
	if err != nil {
		return VerifyResult{}, err
	}
	data, err := json.Marshal(tokenClaims{Phone: phone, Kind: kind})
	if err != nil {
		return VerifyResult{}, err
	}
	if err := s.redis.Set(ctx, tokenKey(token), data, s.tokenTTL).Err(); err != nil {
		return VerifyResult{}, fmt.Errorf("store verification token: %w", err)
	}
	obs.ObserveOTP("check", "ok")
	return VerifyResult{Verified: true, Token: token, ExpiresAt: s.now().Add(s.tokenTTL).UTC()}, nil
}

// Consume validates a token for the phone and kind and deletes it so it cannot gate a
// second submission.
func (s *Service) Consume(ctx context.Context, token, phone, kind string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return ErrInvalidToken
	}
	data, err := s.redis.GetDel(ctx, tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrInvalidToken
		}
		return fmt.Errorf("consume verification token: %w", err)
	}
	var claims tokenClaims
	if err := json.Unmarshal(data, &claims); err != nil {
		return ErrInvalidToken
	}
	if claims.Phone != normalized || claims.Kind != kind {
		return ErrInvalidToken
	}
	return nil
}

// Restore re-issues a consumed token for the same phone and kind with a fresh
// TTL. It never overwrites a token that is still live.
func (s *Service) Restore(ctx context.Context, token, phone, kind string) error {
	token = strings.TrimSpace(token)
	normalized, err := NormalizePhone(phone)
	if token == "" || err != nil {
		return ErrInvalidToken
	}
	data, err := json.Marshal(tokenClaims{Phone: normalized, Kind: kind})
	if err != nil {
		return err
	}
	if err := s.redis.SetNX(ctx, tokenKey(token), data, s.tokenTTL).Err(); err != nil {
		return fmt.Errorf("restore verification token: %w", err)
	}
	return nil
}

// NormalizePhone converts Australian local numbers to E.164 and validates the result.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", invalidPhone()
		}
	}
	phone := b.String()
	switch {
	case strings.HasPrefix(phone, "+"):
	case strings.HasPrefix(phone, "61"):
		phone = "+" + phone
	case strings.HasPrefix(phone, "0"):
		phone = "+61" + phone[1:]
	}
	if !e164.MatchString(phone) {
		return "", invalidPhone()
	}
	return phone, nil
}

func invalidPhone() *common.AppError {
	return &common.AppError{
		Code:       "VALIDATION_ERROR",
		Message:    "invalid phone number",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"field": "phone"},
	}
}

func tokenKey(token string) string {
	return "otp:token:" + common.Sha256Hex(token)
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
