package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"swadharma/backend/internal/telemetry/domain"
)

// emitTimeout is the max time allowed for a single async emit. Used by EmitAsync and by ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the HTTP server stops before closing the producer,
// so in-flight async emits have time to complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not blocked.
// emitter and event may be nil; EmitAsync then returns without starting a goroutine.
// The goroutine uses context.Background() so request cancellation does not abort the emit.
func EmitAsync(log *zap.Logger, emitter EventEmitter, event *domain.Event) {
	if emitter == nil || event == nil {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil && log != nil {
			log.Warn("telemetry: async emit failed",
				zap.String("event_type", event.Type),
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}()
}

// IPExtractor returns the client IP carried by the request context.
type IPExtractor func(context.Context) string

// Publisher stamps and publishes domain events from use cases. A nil *Publisher drops events.
type Publisher struct {
	emitter EventEmitter
	log     *zap.Logger
	ip      IPExtractor
	now     func() time.Time
}

// NewPublisher returns a Publisher writing to emitter. ip may be nil.
func NewPublisher(emitter EventEmitter, log *zap.Logger, ip IPExtractor) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{emitter: emitter, log: log, ip: ip, now: time.Now}
}

// Publish fills the id, timestamp and client IP of ev and emits it asynchronously.
func (p *Publisher) Publish(ctx context.Context, ev domain.Event) {
	if p == nil || p.emitter == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = p.now().UTC()
	}
	if ev.IP == "" && p.ip != nil {
		ev.IP = p.ip(ctx)
	}
	EmitAsync(p.log, p.emitter, &ev)
}
