package common

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// UUIDString renders a pgtype.UUID, returning "" when it is NULL.
func UUIDString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	u, err := uuid.FromBytes(id.Bytes[:])
	if err != nil {
		return ""
	}
	return u.String()
}

// ParseUUID parses a path or body identifier, returning a 400 BAD_REQUEST AppError on failure.
func ParseUUID(field, raw string) (pgtype.UUID, error) {
	u, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return pgtype.UUID{}, &AppError{
			Code:       "BAD_REQUEST",
			Message:    "invalid " + field,
			HTTPStatus: http.StatusBadRequest,
			Err:        err,
			Details:    map[string]any{"field": field},
		}
	}
	return pgtype.UUID{Bytes: u, Valid: true}, nil
}

// Text converts an optional string into pgtype.Text; blank strings become NULL.
func Text(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// TextValue returns the string held by t or "".
func TextValue(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

// Numeric converts a decimal into pgtype.Numeric. A nil pointer becomes NULL.
func Numeric(d *decimal.Decimal) pgtype.Numeric {
	if d == nil {
		return pgtype.Numeric{}
	}
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

// Decimal converts pgtype.Numeric into a decimal pointer, nil for NULL or non-finite values.
func Decimal(n pgtype.Numeric) *decimal.Decimal {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite || n.Int == nil {
		return nil
	}
	d := decimal.NewFromBigInt(n.Int, n.Exp)
	return &d
}

// Time returns the timestamp held by ts or the zero time.
func Time(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}
	return ts.Time
}
