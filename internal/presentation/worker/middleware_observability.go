package workerpresentation

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/kitchen-ops/internal/domain/outbox"
	"github.com/Zhima-Mochi/kitchen-ops/internal/observability"
	"github.com/Zhima-Mochi/kitchen-ops/internal/observability/logctx"

	"github.com/google/uuid"
)

// WithEventContext injects an event-scoped logger for handlers run by the event bus:
// a fresh event_id, the event name, and trace_id/span_id when ctx carries a valid span.
func WithEventContext(ctx context.Context, base observability.Logger, e domoutbox.Event) context.Context {
	if base == nil {
		base = observability.NopLogger()
	}

	fields := append([]observability.Field{
		observability.F("event_id", uuid.NewString()),
		observability.F("event", e.EventName()),
	}, logctx.TraceFields(ctx)...)

	return logctx.With(ctx, base.With(fields...))
}
