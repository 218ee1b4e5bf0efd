package obs

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type routeKey struct{}

// WithRoutePattern pins pattern as the route label for ctx. A pinned value wins
// over whatever chi matched.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routeKey{}, pattern)
}

// RoutePatternFromContext returns the pinned route label, falling back to the
// pattern chi has matched so far. It is empty before routing.
func RoutePatternFromContext(ctx context.Context) string {
	if pattern, ok := ctx.Value(routeKey{}).(string); ok && pattern != "" {
		return pattern
	}
	if rc := chi.RouteContext(ctx); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

// routeLabel is meant to be called once the wrapped handler has returned, when
// chi has finished matching. Unmatched requests collapse into fallback so raw
// paths never reach a label.
func routeLabel(r *http.Request, fallback string) string {
	if pattern := RoutePatternFromContext(r.Context()); pattern != "" {
		return pattern
	}
	return fallback
}

func urlParam(r *http.Request, key string) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.URLParam(key)
	}
	return ""
}
