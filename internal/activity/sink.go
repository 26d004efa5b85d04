package activity

import (
	"context"
	"log/slog"

	"github.com/Priya8975/identity-service/internal/engine"
)

// LogSink writes every activity to the structured log.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(ctx context.Context, a engine.Activity) {
	attrs := []any{"type", string(a.Type)}
	if a.UserID != "" {
		attrs = append(attrs, "user_id", a.UserID)
	}
	if a.ActorID != "" {
		attrs = append(attrs, "actor_id", a.ActorID)
	}
	if len(a.Metadata) > 0 {
		attrs = append(attrs, "metadata", a.Metadata)
	}
	level := slog.LevelInfo
	if a.Type == engine.ActivitySignInFailure {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "auth activity", attrs...)
}

// Multi records each activity to every sink in order.
func Multi(sinks ...engine.ActivitySink) engine.ActivitySink {
	return engine.ActivitySinkFunc(func(ctx context.Context, a engine.Activity) {
		for _, s := range sinks {
			s.Record(ctx, a)
		}
	})
}
