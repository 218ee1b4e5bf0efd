package admin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/plan-configurator/internal/auth"
	"github.com/noah-isme/plan-configurator/internal/common"
	dbgen "github.com/noah-isme/plan-configurator/internal/db/gen"
)

const apiKeyPrefix = "pk_"

var (
	// ErrNotFound is returned when an admin or API key does not exist.
	ErrNotFound = errors.New("admin: not found")
	// ErrEmailTaken is returned when another admin already uses the email.
	ErrEmailTaken = errors.New("admin: email already registered")
	// ErrSelfDelete is returned when an admin tries to remove their own account.
	ErrSelfDelete = errors.New("admin: cannot delete the current admin")
)

// Store is the subset of queries used for admin and API key management.
type Store interface {
	ListAdmins(ctx context.Context) ([]dbgen.Admin, error)
	CreateAdmin(ctx context.Context, arg dbgen.CreateAdminParams) (dbgen.Admin, error)
	UpdateAdmin(ctx context.Context, arg dbgen.UpdateAdminParams) (dbgen.Admin, error)
	DeleteAdmin(ctx context.Context, id pgtype.UUID) (int64, error)
	ListAPIKeys(ctx context.Context) ([]dbgen.ApiKey, error)
	CreateAPIKey(ctx context.Context, arg dbgen.CreateAPIKeyParams) (dbgen.ApiKey, error)
	RevokeAPIKey(ctx context.Context, id pgtype.UUID) (int64, error)
}

// CreateAdminInput is the payload for a new admin.
type CreateAdminInput struct {
	Email       string   `json:"email" validate:"required,email,max=254"`
	Name        string   `json:"name" validate:"required,max=120"`
	Password    string   `json:"password" validate:"required,min=12,max=256"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,required"`
}

// UpdateAdminInput replaces name and permissions. A blank password keeps the current one.
type UpdateAdminInput struct {
	Name        string   `json:"name" validate:"required,max=120"`
	Password    string   `json:"password" validate:"omitempty,min=12,max=256"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,required"`
}

// CreateAPIKeyInput is the payload for a new API key.
type CreateAPIKeyInput struct {
	Name        string   `json:"name" validate:"required,max=120"`
	Permissions []string `json:"permissions" validate:"required,min=1,dive,required"`
}

// APIKey is the public view of an API key. Key is only set in the create response.
type APIKey struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Prefix      string     `json:"prefix"`
	Key         string     `json:"key,omitempty"`
	Permissions []string   `json:"permissions"`
	CreatedBy   string     `json:"createdBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
	RevokedAt   *time.Time `json:"revokedAt,omitempty"`
}

// Service manages admin accounts and API keys.
type Service struct {
	store  Store
	params *argon2id.Params
}

// ServiceConfig groups Service dependencies. HashParams defaults to argon2id.DefaultParams.
type ServiceConfig struct {
	Store      Store
	HashParams *argon2id.Params
}

// NewService constructs an admin management service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("admin: store is required")
	}
	params := cfg.HashParams
	if params == nil {
		params = argon2id.DefaultParams
	}
	return &Service{store: cfg.Store, params: params}, nil
}

// ListAdmins returns every admin account.
func (s *Service) ListAdmins(ctx context.Context) ([]auth.Admin, error) {
	rows, err := s.store.ListAdmins(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]auth.Admin, 0, len(rows))
	for _, row := range rows {
		out = append(out, auth.ToAdmin(row))
	}
	return out, nil
}

// CreateAdmin registers a new admin with a hashed password.
func (s *Service) CreateAdmin(ctx context.Context, in CreateAdminInput) (auth.Admin, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := common.ValidateStruct(in); err != nil {
		return auth.Admin{}, err
	}
	perms, err := normalizePermissions(in.Permissions)
	if err != nil {
		return auth.Admin{}, err
	}
	hash, err := argon2id.CreateHash(in.Password, s.params)
	if err != nil {
		return auth.Admin{}, fmt.Errorf("hash password: %w", err)
	}
	row, err := s.store.CreateAdmin(ctx, dbgen.CreateAdminParams{
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		Permissions:  perms,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return auth.Admin{}, ErrEmailTaken
		}
		return auth.Admin{}, fmt.Errorf("create admin: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("admin_id", common.UUIDString(row.ID)).Strs("permissions", perms).Msg("admin created")
	return auth.ToAdmin(row), nil
}

// UpdateAdmin replaces an admin's name and permissions and optionally the password.
func (s *Service) UpdateAdmin(ctx context.Context, id string, in UpdateAdminInput) (auth.Admin, error) {
	adminID, err := common.ParseUUID("id", id)
	if err != nil {
		return auth.Admin{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := common.ValidateStruct(in); err != nil {
		return auth.Admin{}, err
	}
	perms, err := normalizePermissions(in.Permissions)
	if err != nil {
		return auth.Admin{}, err
	}
	var hash string
	if in.Password != "" {
		if hash, err = argon2id.CreateHash(in.Password, s.params); err != nil {
			return auth.Admin{}, fmt.Errorf("hash password: %w", err)
		}
	}
	row, err := s.store.UpdateAdmin(ctx, dbgen.UpdateAdminParams{
		ID:           adminID,
		Name:         in.Name,
		Permissions:  perms,
		PasswordHash: hash,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.Admin{}, ErrNotFound
	}
	if err != nil {
		return auth.Admin{}, fmt.Errorf("update admin: %w", err)
	}
	return auth.ToAdmin(row), nil
}

// DeleteAdmin removes an admin. Admins cannot delete themselves.
func (s *Service) DeleteAdmin(ctx context.Context, id string) error {
	adminID, err := common.ParseUUID("id", id)
	if err != nil {
		return err
	}
	if current, ok := common.AdminID(ctx); ok && current == common.UUIDString(adminID) {
		return ErrSelfDelete
	}
	n, err := s.store.DeleteAdmin(ctx, adminID)
	if err != nil {
		return fmt.Errorf("delete admin: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAPIKeys returns all keys, newest first, without secrets.
func (s *Service) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.store.ListAPIKeys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]APIKey, 0, len(rows))
	for _, row := range rows {
		out = append(out, toAPIKey(row))
	}
	return out, nil
}

// CreateAPIKey mints a key. The raw key is returned once; only its SHA-256 is stored.
func (s *Service) CreateAPIKey(ctx context.Context, in CreateAPIKeyInput) (APIKey, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := common.ValidateStruct(in); err != nil {
		return APIKey{}, err
	}
	perms, err := normalizePermissions(in.Permissions)
	if err != nil {
		return APIKey{}, err
	}
	raw, err := generateKey()
	if err != nil {
		return APIKey{}, fmt.Errorf("generate api key: %w", err)
	}
	var createdBy pgtype.UUID
	if adminID, ok := common.AdminID(ctx); ok {
		createdBy, _ = common.ParseUUID("createdBy", adminID)
	}
	row, err := s.store.CreateAPIKey(ctx, dbgen.CreateAPIKeyParams{
		Name:        in.Name,
		Prefix:      raw[:len(apiKeyPrefix)+6],
		KeyHash:     common.Sha256Hex(raw),
		Permissions: perms,
		CreatedBy:   createdBy,
	})
	if err != nil {
		return APIKey{}, fmt.Errorf("create api key: %w", err)
	}
	key := toAPIKey(row)
	key.Key = raw
	return key, nil
}

// RevokeAPIKey disables a key. Revoking an already revoked key reports ErrNotFound.
func (s *Service) RevokeAPIKey(ctx context.Context, id string) error {
	keyID, err := common.ParseUUID("id", id)
	if err != nil {
		return err
	}
	n, err := s.store.RevokeAPIKey(ctx, keyID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizePermissions(in []string) ([]string, error) {
	known := auth.Permissions()
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != auth.PermissionWildcard && !slices.Contains(known, p) {
			return nil, common.FieldError("permissions", "unknown permission "+p)
		}
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out, nil
}

func generateKey() (string, error) {
	token, err := common.RandomToken(32)
	if err != nil {
		return "", err
	}
	return apiKeyPrefix + token, nil
}

func toAPIKey(row dbgen.ApiKey) APIKey {
	k := APIKey{
		ID:          common.UUIDString(row.ID),
		Name:        row.Name,
		Prefix:      row.Prefix,
		Permissions: row.Permissions,
		CreatedBy:   common.UUIDString(row.CreatedBy),
		CreatedAt:   common.Time(row.CreatedAt),
	}
	if k.Permissions == nil {
		k.Permissions = []string{}
	}
	if row.LastUsedAt.Valid {
		t := row.LastUsedAt.Time
		k.LastUsedAt = &t
	}
	if row.RevokedAt.Valid {
		t := row.RevokedAt.Time
		k.RevokedAt = &t
	}
	return k
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
