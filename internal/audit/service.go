package audit

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/plan-configurator/internal/common"
	dbgen "github.com/noah-isme/plan-configurator/internal/db/gen"
	"github.com/noah-isme/plan-configurator/internal/obs"
)

// Actor kinds stored in audit_logs.actor_kind.
const (
	ActorAdmin     = common.ActorAdmin
	ActorAPIKey    = common.ActorAPIKey
	ActorAnonymous = "anonymous"
)

// Actor is the principal behind an audited request.
type Actor struct {
	Kind     string
	AdminID  string
	APIKeyID string
}

// ActorFromContext reads the principal attached by the auth middleware.
func ActorFromContext(ctx context.Context) Actor {
	switch common.ActorKind(ctx) {
	case ActorAdmin:
		id, _ := common.AdminID(ctx)
		return Actor{Kind: ActorAdmin, AdminID: id}
	case ActorAPIKey:
		id, _ := common.APIKeyID(ctx)
		return Actor{Kind: ActorAPIKey, APIKeyID: id}
	default:
		return Actor{Kind: ActorAnonymous}
	}
}

// Entry describes one audited action.
type Entry struct {
	Action       string
	ResourceType string
	ResourceID   string
	Status       int
	Metadata     map[string]any
}

// Store defines the database operations required for auditing.
type Store interface {
	InsertAuditLog(ctx context.Context, arg dbgen.InsertAuditLogParams) (dbgen.InsertAuditLogRow, error)
	ListAuditLogs(ctx context.Context, arg dbgen.ListAuditLogsParams) ([]dbgen.AuditLog, error)
}

// Service persists audit logs for admin mutations.
type Service struct {
	Store        Store
	Enabled      bool
	SamplingRate float64
}

// Record persists an audit entry for req when auditing is enabled and the entry is sampled.
func (s Service) Record(ctx context.Context, req *http.Request, entry Entry) error {
	if !s.Enabled {
		return nil
	}
	if s.SamplingRate > 0 && s.SamplingRate < 1 && rand.Float64() > s.SamplingRate {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}

	route := obs.RoutePatternFromContext(req.Context())
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}
	actor := ActorFromContext(req.Context())

	metadata := entry.Metadata
	if actor.APIKeyID != "" || req.URL.RawQuery != "" {
		merged := make(map[string]any, len(metadata)+2)
		for k, v := range metadata {
			merged[k] = v
		}
		if actor.APIKeyID != "" {
			merged["apiKeyId"] = actor.APIKeyID
		}
		if req.URL.RawQuery != "" {
			merged["query"] = req.URL.RawQuery
		}
		metadata = merged
	}
	var encoded []byte
	if len(metadata) > 0 {
		data, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		encoded = data
	}

	status := entry.Status
	if status == 0 {
		status = http.StatusOK
	}

	_, err := s.Store.InsertAuditLog(ctx, dbgen.InsertAuditLogParams{
		ActorKind:    actor.Kind,
		ActorAdminID: adminUUID(actor.AdminID),
		Action:       buildAction(entry.Action, req.Method, route),
		ResourceType: buildResource(entry.ResourceType, route),
		ResourceID:   common.Text(entry.ResourceID),
		Method:       req.Method,
		Path:         req.URL.Path,
		Route:        common.Text(route),
		Status:       int32(status),
		Ip:           common.Text(common.ClientIP(req)),
		UserAgent:    common.Text(req.Header.Get("User-Agent")),
		RequestID:    common.Text(requestID(req)),
		Metadata:     encoded,
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("route", route).Msg("audit insert failed")
	}
	return err
}

func buildAction(action, method, route string) string {
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		return trimmed
	}
	if route == "" {
		route = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + route
}

// buildResource derives "admins" or "api-keys" style names from /api/admin/... routes.
func buildResource(resourceType, route string) string {
	if trimmed := strings.TrimSpace(resourceType); trimmed != "" {
		return trimmed
	}
	segments := strings.Split(strings.Trim(route, "/ "), "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "admin" {
		segments = segments[2:]
	}
	kept := segments[:0]
	for _, seg := range segments {
		if seg != "" && !strings.HasPrefix(seg, "{") {
			kept = append(kept, seg)
		}
	}
	if len(kept) == 0 {
		return "unknown"
	}
	return strings.Join(kept, ".")
}

func requestID(req *http.Request) string {
	if id := middleware.GetReqID(req.Context()); id != "" {
		return id
	}
	return strings.TrimSpace(req.Header.Get(middleware.RequestIDHeader))
}

func adminUUID(id string) pgtype.UUID {
	if id == "" {
		return pgtype.UUID{}
	}
	parsed, err := common.ParseUUID("actor", id)
	if err != nil {
		return pgtype.UUID{}
	}
	return parsed
}
