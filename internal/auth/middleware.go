package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/plan-configurator/internal/common"
)

// APIKeyHeader carries machine credentials for admin routes.
const APIKeyHeader = "X-API-Key"

var errNoCredentials = errors.New("auth: credentials missing")

// Admin permissions.
const (
	PermProductsWrite  = "products:write"
	PermAdminsWrite    = "admins:write"
	PermAPIKeysWrite   = "apikeys:write"
	PermContractsRead  = "contracts:read"
	PermAuditRead      = "audit:read"
	PermissionWildcard = "*"
)

// Permissions lists every grantable permission.
func Permissions() []string {
	return []string{PermProductsWrite, PermAdminsWrite, PermAPIKeysWrite, PermContractsRead, PermAuditRead}
}

// Authenticator resolves request credentials into a principal.
type Authenticator interface {
	AuthenticateSession(ctx context.Context, token string) (Principal, error)
	AuthenticateAPIKey(ctx context.Context, raw string) (Principal, error)
}

// Middleware wires admin authentication into HTTP handlers.
type Middleware struct {
	Service       Authenticator
	SessionCookie string
}

// RequireAdmin rejects requests without a valid session cookie, bearer token or API key.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil {
			var appErr *common.AppError
			if !errors.Is(err, errNoCredentials) && errors.As(err, &appErr) {
				common.JSONError(w, http.StatusUnauthorized, appErr.Code, appErr.Message, appErr.Details)
				return
			}
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid credentials", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission rejects principals lacking perm. It must run after RequireAdmin.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !common.HasPermission(r.Context(), perm) {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "missing permission", map[string]any{"permission": perm})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) authenticateRequest(r *http.Request) (context.Context, error) {
	if m.Service == nil {
		return r.Context(), errors.New("auth: service not configured")
	}
	ctx := r.Context()
	var (
		principal Principal
		err       error
	)
	switch {
	case strings.TrimSpace(r.Header.Get(APIKeyHeader)) != "":
		principal, err = m.Service.AuthenticateAPIKey(ctx, r.Header.Get(APIKeyHeader))
	case m.sessionToken(r) != "":
		principal, err = m.Service.AuthenticateSession(ctx, m.sessionToken(r))
	default:
		return ctx, errNoCredentials
	}
	if err != nil {
		return ctx, err
	}

	ctx = common.WithActorKind(ctx, principal.Kind)
	ctx = common.WithPermissions(ctx, principal.Permissions)
	if principal.Kind == common.ActorAPIKey {
		ctx = common.WithAPIKeyID(ctx, principal.ID)
	} else {
		ctx = common.WithAdminID(ctx, principal.ID)
	}
	return ctx, nil
}

func (m Middleware) sessionToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if m.SessionCookie != "" {
		if cookie, err := r.Cookie(m.SessionCookie); err == nil {
			return strings.TrimSpace(cookie.Value)
		}
	}
	return ""
}
