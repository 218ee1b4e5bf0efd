package queue

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var (
	QueueProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_processed_total",
			Help: "Total tasks processed grouped by type and status",
		},
		[]string{"type", "status"},
	)
	QueueTaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queue_task_duration_ms",
			Help:    "Task handler duration in milliseconds",
			Buckets: []float64{5, 25, 100, 250, 1000, 5000, 15000},
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(QueueProcessedTotal, QueueTaskDuration)
}

// Instrument records metrics and a structured log line for every processed task.
// The task logger is attached to the handler context.
func Instrument(logger zerolog.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			taskID, _ := asynq.GetTaskID(ctx)
			retry, _ := asynq.GetRetryCount(ctx)
			l := logger.With().Str("task_type", t.Type()).Str("task_id", taskID).Int("retry", retry).Logger()
			ctx = l.WithContext(ctx)

			start := time.Now()
			err := next.ProcessTask(ctx, t)
			elapsed := time.Since(start)
			QueueTaskDuration.WithLabelValues(t.Type()).Observe(float64(elapsed.Microseconds()) / 1000)

			status := "ok"
			evt := l.Info()
			switch {
			case err == nil:
			case errors.Is(err, asynq.SkipRetry):
				status = "dropped"
				evt = l.Error().Err(err)
			default:
				status = "failed"
				evt = l.Warn().Err(err)
			}
			QueueProcessedTotal.WithLabelValues(t.Type(), status).Inc()
			evt.Int64("duration_ms", elapsed.Milliseconds()).Msg("task_processed")
			return err
		})
	}
}
