package queue

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// ServerConfig configures the asynq worker server.
type ServerConfig struct {
	RedisURL    string
	Concurrency int
	Logger      zerolog.Logger
}

// RedisConnOpt parses a redis:// URL into asynq connection options.
func RedisConnOpt(redisURL string) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("queue: parse redis url: %w", err)
	}
	return opt, nil
}

// NewClient returns an asynq client for the API process.
func NewClient(redisURL string) (*asynq.Client, error) {
	opt, err := RedisConnOpt(redisURL)
	if err != nil {
		return nil, err
	}
	return asynq.NewClient(opt), nil
}

// NewServer returns an asynq server processing the contracts queue.
func NewServer(cfg ServerConfig) (*asynq.Server, error) {
	opt, err := RedisConnOpt(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueContracts: 1},
		Logger:      logAdapter{l: cfg.Logger},
	}), nil
}

// NewMux routes task types to handlers behind the Instrument middleware.
func NewMux(logger zerolog.Logger, handlers map[string]asynq.Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(Instrument(logger))
	for typename, h := range handlers {
		if h != nil {
			mux.Handle(typename, h)
		}
	}
	return mux
}

type logAdapter struct {
	l zerolog.Logger
}

func (a logAdapter) Debug(args ...interface{}) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a logAdapter) Info(args ...interface{})  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a logAdapter) Warn(args ...interface{})  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a logAdapter) Error(args ...interface{}) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a logAdapter) Fatal(args ...interface{}) { a.l.Fatal().Msg(fmt.Sprint(args...)) }
