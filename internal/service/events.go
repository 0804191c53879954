package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
	"github.com/Hurisoft/soccersm-pools/internal/notify"
)

// EventChannel is the signal-bus channel carrying every pool lifecycle
// event as JSON.
const EventChannel = "pools.events"

// EventFanout implements domain.EventSink. It fans each engine event out to
// the signal bus (for websocket clients and other replicas), the audit log,
// and the operator notifier. Delivery is best-effort: a failing leg is
// logged and never blocks the engine.
type EventFanout struct {
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewEventFanout creates a fanout. bus, audit and notifier may each be nil.
func NewEventFanout(bus domain.SignalBus, audit domain.AuditStore, notifier *notify.Notifier, logger *slog.Logger) *EventFanout {
	return &EventFanout{
		bus:      bus,
		audit:    audit,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "event_fanout")),
	}
}

// Emit delivers one lifecycle event to every configured leg.
func (f *EventFanout) Emit(ctx context.Context, ev domain.PoolEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		f.logger.ErrorContext(ctx, "marshal event",
			slog.String("type", string(ev.Type)),
			slog.String("error", err.Error()),
		)
		return
	}

	if f.bus != nil {
		if err := f.bus.Publish(ctx, EventChannel, payload); err != nil {
			f.logger.WarnContext(ctx, "publish event",
				slog.String("type", string(ev.Type)),
				slog.Uint64("pool_id", ev.PoolID),
				slog.String("error", err.Error()),
			)
		}
	}

	if f.audit != nil {
		detail := map[string]any{
			"pool_id": ev.PoolID,
			"actor":   ev.Actor,
			"state":   string(ev.State),
		}
		if ev.Result != "" {
			detail["result"] = ev.Result
		}
		if ev.Payout != "" {
			detail["payout"] = ev.Payout
		}
		if err := f.audit.Log(ctx, string(ev.Type), detail); err != nil {
			f.logger.WarnContext(ctx, "audit event",
				slog.String("type", string(ev.Type)),
				slog.Uint64("pool_id", ev.PoolID),
				slog.String("error", err.Error()),
			)
		}
	}

	if f.notifier != nil {
		if err := f.notifier.NotifyPoolEvent(ctx, ev); err != nil {
			f.logger.WarnContext(ctx, "notify event",
				slog.String("type", string(ev.Type)),
				slog.Uint64("pool_id", ev.PoolID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Compile-time interface check.
var _ domain.EventSink = (*EventFanout)(nil)
