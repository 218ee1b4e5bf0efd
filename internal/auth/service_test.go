package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/plan-configurator/internal/common"
	dbgen "github.com/noah-isme/plan-configurator/internal/db/gen"
)

var testParams = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type fakeStore struct {
	mu      sync.Mutex
	admins  map[pgtype.UUID]dbgen.Admin
	keys    map[string]dbgen.ApiKey
	touched []pgtype.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{admins: map[pgtype.UUID]dbgen.Admin{}, keys: map[string]dbgen.ApiKey{}}
}

func (f *fakeStore) addAdmin(t *testing.T, email, password string, perms ...string) dbgen.Admin {
	t.Helper()
	hash, err := argon2id.CreateHash(password, testParams)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	row := dbgen.Admin{
		ID:           pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Email:        email,
		Name:         "Admin",
		PasswordHash: hash,
		Permissions:  perms,
		CreatedAt:    pgtype.Timestamptz{Time: time.Now(), Valid: true},
		UpdatedAt:    pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}
	f.mu.Lock()
	f.admins[row.ID] = row
	f.mu.Unlock()
	return row
}

func (f *fakeStore) addKey(raw string, perms ...string) dbgen.ApiKey {
	row := dbgen.ApiKey{
		ID:          pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Name:        "ci",
		KeyHash:     common.Sha256Hex(raw),
		Permissions: perms,
	}
	f.mu.Lock()
	f.keys[row.KeyHash] = row
	f.mu.Unlock()
	return row
}

func (f *fakeStore) GetAdminByEmail(_ context.Context, email string) (dbgen.Admin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.admins {
		if a.Email == email {
			return a, nil
		}
	}
	return dbgen.Admin{}, pgx.ErrNoRows
}

func (f *fakeStore) GetAdminByID(_ context.Context, id pgtype.UUID) (dbgen.Admin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.admins[id]
	if !ok {
		return dbgen.Admin{}, pgx.ErrNoRows
	}
	return a, nil
}

func (f *fakeStore) TouchAdminLogin(_ context.Context, id pgtype.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeStore) GetActiveAPIKeyByHash(_ context.Context, keyHash string) (dbgen.ApiKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.keys[keyHash]
	if !ok || k.RevokedAt.Valid {
		return dbgen.ApiKey{}, pgx.ErrNoRows
	}
	return k, nil
}

func (f *fakeStore) TouchAPIKey(_ context.Context, id pgtype.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, id)
	return nil
}

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	svc, err := NewService(Config{Store: store, Secret: "super-secret-key", SessionTTL: time.Hour})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestLoginIssuesSessionToken(t *testing.T) {
	store := newFakeStore()
	row := store.addAdmin(t, "ops@example.com", "correct horse", PermContractsRead)
	svc := newTestService(t, store)
	fixed := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return fixed })

	result, err := svc.Login(context.Background(), " OPS@example.com ", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Admin.Email != "ops@example.com" {
		t.Fatalf("unexpected admin: %+v", result.Admin)
	}
	if !result.ExpiresAt.Equal(fixed.Add(time.Hour)) {
		t.Fatalf("unexpected expiry: %s", result.ExpiresAt)
	}
	if len(store.touched) != 1 || store.touched[0] != row.ID {
		t.Fatalf("login was not recorded")
	}

	subject, err := svc.ParseSessionToken(result.Token)
	if err != nil {
		t.Fatalf("parse session token: %v", err)
	}
	if subject != common.UUIDString(row.ID) {
		t.Fatalf("unexpected subject: %s", subject)
	}

	svc.WithNow(func() time.Time { return fixed.Add(2 * time.Hour) })
	if _, err := svc.ParseSessionToken(result.Token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	store := newFakeStore()
	store.addAdmin(t, "ops@example.com", "correct horse")
	svc := newTestService(t, store)

	for _, tc := range []struct{ email, password string }{
		{"ops@example.com", "wrong"},
		{"nobody@example.com", "correct horse"},
		{"", ""},
	} {
		_, err := svc.Login(context.Background(), tc.email, tc.password)
		var appErr *common.AppError
		if !errors.As(err, &appErr) || appErr.Code != "INVALID_CREDENTIALS" {
			t.Fatalf("login(%q): expected INVALID_CREDENTIALS, got %v", tc.email, err)
		}
	}
}

func TestParseSessionTokenRejectsAlgorithmMismatch(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	now := time.Now()
	built, err := jwt.NewBuilder().
		Subject(uuid.NewString()).
		Issuer(svc.tokens.issuer).
		Audience([]string{svc.tokens.audience}).
		IssuedAt(now).
		Expiration(now.Add(time.Minute)).
		Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	signed, err := jwt.Sign(built, jwt.WithKey(jwa.HS384, svc.tokens.secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := svc.ParseSessionToken(string(signed)); err == nil {
		t.Fatal("expected algorithm mismatch error")
	}
}

func TestParseSessionTokenRejectsForeignSecret(t *testing.T) {
	other, err := NewService(Config{Store: newFakeStore(), Secret: "another-secret"})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	token, _, err := other.signSessionToken(uuid.NewString())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := newTestService(t, newFakeStore()).ParseSessionToken(token); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestAuthenticateSessionReloadsPermissions(t *testing.T) {
	store := newFakeStore()
	row := store.addAdmin(t, "ops@example.com", "pw", PermContractsRead)
	svc := newTestService(t, store)
	token, _, err := svc.signSessionToken(common.UUIDString(row.ID))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	row.Permissions = []string{PermProductsWrite}
	store.admins[row.ID] = row
	p, err := svc.AuthenticateSession(context.Background(), token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p.Kind != common.ActorAdmin || len(p.Permissions) != 1 || p.Permissions[0] != PermProductsWrite {
		t.Fatalf("unexpected principal: %+v", p)
	}

	delete(store.admins, row.ID)
	if _, err := svc.AuthenticateSession(context.Background(), token); err == nil {
		t.Fatal("expected deleted admin to be rejected")
	}
}

func TestAuthenticateAPIKey(t *testing.T) {
	store := newFakeStore()
	key := store.addKey("pk_live_abc", PermContractsRead)
	svc := newTestService(t, store)

	p, err := svc.AuthenticateAPIKey(context.Background(), "pk_live_abc")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p.Kind != common.ActorAPIKey || p.ID != common.UUIDString(key.ID) {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if _, err := svc.AuthenticateAPIKey(context.Background(), "pk_live_other"); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}

	key.RevokedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	store.keys[key.KeyHash] = key
	if _, err := svc.AuthenticateAPIKey(context.Background(), "pk_live_abc"); err == nil {
		t.Fatal("expected revoked key to be rejected")
	}
}

func TestNewServiceRequiresSecret(t *testing.T) {
	if _, err := NewService(Config{Store: newFakeStore()}); err == nil {
		t.Fatal("expected missing secret error")
	}
	if _, err := NewService(Config{Secret: "x"}); err == nil {
		t.Fatal("expected missing store error")
	}
}
