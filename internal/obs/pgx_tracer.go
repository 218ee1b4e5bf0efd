package obs

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxStatementLen = 300

type querySpanKey struct{}

// PGXTracer opens a client span per query. sqlc statements are named after
// their "-- name:" header so spans read "db GetProduct" rather than raw SQL.
type PGXTracer struct{}

func (PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	name, op := describeQuery(data.SQL)
	ctx, span := otel.Tracer("plan-configurator/pgx").Start(ctx, "db "+name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
		attribute.String("db.query.text", clip(strings.TrimSpace(data.SQL), maxStatementLen)),
		attribute.Int("db.query.args", len(data.Args)),
	)
	return context.WithValue(ctx, querySpanKey{}, span)
}

func (PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span, ok := ctx.Value(querySpanKey{}).(trace.Span)
	if !ok {
		return
	}
	if data.Err != nil && !errors.Is(data.Err, pgx.ErrNoRows) {
		span.RecordError(data.Err)
		span.SetStatus(codes.Error, "query failed")
	} else {
		span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	}
	span.End()
}

// describeQuery returns the sqlc query name (or the SQL verb when the header is
// missing) and the SQL verb.
func describeQuery(sql string) (name, op string) {
	var body []string
	for _, line := range strings.Split(sql, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "-- name:"); ok {
			if fields := strings.Fields(rest); len(fields) > 0 {
				name = fields[0]
			}
			continue
		}
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		body = strings.Fields(line)
		break
	}
	if len(body) > 0 {
		op = strings.ToUpper(body[0])
	}
	if name == "" {
		name = op
	}
	if name == "" {
		name = "query"
	}
	return name, op
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
