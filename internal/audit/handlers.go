package audit

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/noah-isme/plan-configurator/internal/common"
	dbgen "github.com/noah-isme/plan-configurator/internal/db/gen"
)

// Handler exposes HTTP endpoints for working with audit logs.
type Handler struct {
	Store Store
}

// Log is the admin view of one audit_logs row.
type Log struct {
	ID           string          `json:"id"`
	ActorKind    string          `json:"actorKind"`
	ActorAdminID string          `json:"actorAdminId,omitempty"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resourceType"`
	ResourceID   string          `json:"resourceId,omitempty"`
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	Route        string          `json:"route,omitempty"`
	Status       int32           `json:"status"`
	IP           string          `json:"ip,omitempty"`
	RequestID    string          `json:"requestId,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// List handles GET /api/admin/audit-logs, newest first.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	page := common.ParsePage(r, 50, 200)
	rows, err := h.Store.ListAuditLogs(r.Context(), dbgen.ListAuditLogsParams{
		Limit:  page.Limit(),
		Offset: page.Offset(),
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit logs", nil)
		return
	}
	out := make([]Log, 0, len(rows))
	for _, row := range rows {
		out = append(out, toLog(row))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       out,
		"pagination": page,
	})
}

func toLog(row dbgen.AuditLog) Log {
	l := Log{
		ID:           common.UUIDString(row.ID),
		ActorKind:    row.ActorKind,
		ActorAdminID: common.UUIDString(row.ActorAdminID),
		Action:       row.Action,
		ResourceType: row.ResourceType,
		ResourceID:   common.TextValue(row.ResourceID),
		Method:       row.Method,
		Path:         row.Path,
		Route:        common.TextValue(row.Route),
		Status:       row.Status,
		IP:           common.TextValue(row.Ip),
		RequestID:    common.TextValue(row.RequestID),
		CreatedAt:    common.Time(row.CreatedAt),
	}
	if len(row.Metadata) > 0 {
		l.Metadata = json.RawMessage(row.Metadata)
	}
	return l
}
