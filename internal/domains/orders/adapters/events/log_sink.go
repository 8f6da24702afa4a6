package events

import (
	"context"
	"log/slog"

	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
	"github.com/Apurer/go-order-admin/internal/domains/orders/ports"
)

var (
	_ ports.EventSink = (*LogSink)(nil)
	_ ports.EventSink = Fanout(nil)
)

// LogSink writes every event as a structured log record.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(ctx context.Context, event domain.Event) {
	if event == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "order event",
		slog.String("event.name", event.EventName()),
		slog.String("order.id", event.AggregateID()),
		slog.Time("event.occurred_at", event.OccurredAt()),
		slog.Any("event.payload", event),
	)
}

// Fanout forwards each event to every sink in order.
type Fanout []ports.EventSink

func (f Fanout) Emit(ctx context.Context, event domain.Event) {
	for _, sink := range f {
		if sink != nil {
			sink.Emit(ctx, event)
		}
	}
}
