package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/plan-configurator/internal/common"
	dbgen "github.com/noah-isme/plan-configurator/internal/db/gen"
)

const (
	defaultSessionTTL = 12 * time.Hour
	defaultIssuer     = "plan-configurator"
	defaultAudience   = "plan-configurator-admin"
)

// Store is the subset of queries the auth service needs.
type Store interface {
	GetAdminByEmail(ctx context.Context, email string) (dbgen.Admin, error)
	GetAdminByID(ctx context.Context, id pgtype.UUID) (dbgen.Admin, error)
	TouchAdminLogin(ctx context.Context, id pgtype.UUID) error
	GetActiveAPIKeyByHash(ctx context.Context, keyHash string) (dbgen.ApiKey, error)
	TouchAPIKey(ctx context.Context, id pgtype.UUID) error
}

// Service authenticates admins and API keys.
type Service struct {
	store  Store
	tokens sessionTokens
	now    func() time.Time
}

// Config configures the auth service.
type Config struct {
	Store      Store
	Secret     string
	SessionTTL time.Duration
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
}

// Admin is the public view of an admin account.
type Admin struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Permissions []string   `json:"permissions"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// Principal is the authenticated caller of an admin route.
type Principal struct {
	Kind        string
	ID          string
	Permissions []string
}

// LoginResult carries the signed session token for the cookie.
type LoginResult struct {
	Admin     Admin
	Token     string
	ExpiresAt time.Time
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("auth: store is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultIssuer
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = defaultAudience
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}

	return &Service{
		store: cfg.Store,
		tokens: sessionTokens{
			secret:   []byte(secret),
			issuer:   issuer,
			audience: audience,
			skew:     clockSkew,
			ttl:      ttl,
		},
		now: time.Now,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Login verifies admin credentials and signs a session token.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	normalized := strings.TrimSpace(strings.ToLower(email))
	if normalized == "" || password == "" {
		return LoginResult{}, invalidCredentials()
	}

	row, err := s.store.GetAdminByEmail(ctx, normalized)
	if err != nil {
		return LoginResult{}, invalidCredentials()
	}
	ok, err := argon2id.ComparePasswordAndHash(password, row.PasswordHash)
	if err != nil || !ok {
		return LoginResult{}, invalidCredentials()
	}

	adminID := common.UUIDString(row.ID)
	if adminID == "" {
		return LoginResult{}, errors.New("auth: invalid admin identifier")
	}
	token, expiresAt, err := s.signSessionToken(adminID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign session token: %w", err)
	}
	if err := s.store.TouchAdminLogin(ctx, row.ID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("admin_id", adminID).Msg("touch admin login")
	}

	return LoginResult{Admin: ToAdmin(row), Token: token, ExpiresAt: expiresAt}, nil
}

// Me loads the admin behind an authenticated session.
func (s *Service) Me(ctx context.Context, adminID string) (Admin, error) {
	row, err := s.loadAdmin(ctx, adminID)
	if err != nil {
		return Admin{}, err
	}
	return ToAdmin(row), nil
}

// AuthenticateSession resolves a session token into a principal. Permissions
// are read from the database so revoked grants apply immediately.
func (s *Service) AuthenticateSession(ctx context.Context, token string) (Principal, error) {
	adminID, err := s.ParseSessionToken(token)
	if err != nil {
		return Principal{}, err
	}
	row, err := s.loadAdmin(ctx, adminID)
	if err != nil {
		return Principal{}, err
	}
	return Principal{Kind: common.ActorAdmin, ID: adminID, Permissions: row.Permissions}, nil
}

// AuthenticateAPIKey resolves a raw API key into a principal.
func (s *Service) AuthenticateAPIKey(ctx context.Context, raw string) (Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Principal{}, unauthorized("missing api key")
	}
	key, err := s.store.GetActiveAPIKeyByHash(ctx, common.Sha256Hex(raw))
	if err != nil {
		return Principal{}, unauthorized("invalid api key")
	}
	if err := s.store.TouchAPIKey(ctx, key.ID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("api_key_id", common.UUIDString(key.ID)).Msg("touch api key")
	}
	return Principal{Kind: common.ActorAPIKey, ID: common.UUIDString(key.ID), Permissions: key.Permissions}, nil
}

// ParseSessionToken validates a session token and returns the admin id it was issued to.
func (s *Service) ParseSessionToken(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", unauthorized("missing token")
	}
	adminID, err := s.tokens.parse(trimmed, s.now())
	if err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	return adminID, nil
}

func (s *Service) loadAdmin(ctx context.Context, adminID string) (dbgen.Admin, error) {
	id, err := common.ParseUUID("id", adminID)
	if err != nil {
		return dbgen.Admin{}, unauthorized("unauthorized")
	}
	row, err := s.store.GetAdminByID(ctx, id)
	if err != nil {
		return dbgen.Admin{}, unauthorized("unauthorized")
	}
	return row, nil
}

func (s *Service) signSessionToken(adminID string) (string, time.Time, error) {
	return s.tokens.sign(adminID, s.now())
}

// ToAdmin converts a database row into the public admin view.
func ToAdmin(row dbgen.Admin) Admin {
	a := Admin{
		ID:          common.UUIDString(row.ID),
		Email:       row.Email,
		Name:        row.Name,
		Permissions: row.Permissions,
		CreatedAt:   common.Time(row.CreatedAt),
		UpdatedAt:   common.Time(row.UpdatedAt),
	}
	if a.Permissions == nil {
		a.Permissions = []string{}
	}
	if row.LastLoginAt.Valid {
		t := row.LastLoginAt.Time
		a.LastLoginAt = &t
	}
	return a
}

func invalidCredentials() *common.AppError {
	return common.NewAppError("INVALID_CREDENTIALS", "invalid email or password", http.StatusUnauthorized, nil)
}

func unauthorized(message string) *common.AppError {
	return common.NewAppError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}
