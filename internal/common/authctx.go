package common

import "context"

type ctxKey string

const (
	adminIDKey     ctxKey = "auth/admin-id"
	permissionsKey ctxKey = "auth/permissions"
)

// WithAdminID stores the authenticated admin identifier on the provided context.
func WithAdminID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, adminIDKey, id)
}

// AdminID extracts the authenticated admin identifier from the context if present.
func AdminID(ctx context.Context) (string, bool) {
	v := ctx.Value(adminIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// WithPermissions stores the permission set granted to the current principal.
func WithPermissions(ctx context.Context, perms []string) context.Context {
	return context.WithValue(ctx, permissionsKey, perms)
}

// HasPermission reports whether the principal on ctx holds perm.
func HasPermission(ctx context.Context, perm string) bool {
	perms, _ := ctx.Value(permissionsKey).([]string)
	for _, p := range perms {
		if p == perm || p == "*" {
			return true
		}
	}
	return false
}

const (
	actorKindKey ctxKey = "auth/actor-kind"
	apiKeyIDKey  ctxKey = "auth/api-key-id"
)

// Actor kinds recorded for authenticated principals.
const (
	ActorAdmin  = "admin"
	ActorAPIKey = "apikey"
)

// WithActorKind records how the current principal authenticated.
func WithActorKind(ctx context.Context, kind string) context.Context {
	return context.WithValue(ctx, actorKindKey, kind)
}

// ActorKind returns the principal kind stored on ctx, or "".
func ActorKind(ctx context.Context) string {
	kind, _ := ctx.Value(actorKindKey).(string)
	return kind
}

// WithAPIKeyID stores the identifier of the API key used for the request.
func WithAPIKeyID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, apiKeyIDKey, id)
}

// APIKeyID extracts the API key identifier from ctx.
func APIKeyID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(apiKeyIDKey).(string)
	return id, ok && id != ""
}
