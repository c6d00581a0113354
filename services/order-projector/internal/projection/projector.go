package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/orderflow/libs/events"
	"github.com/md-rashed-zaman/orderflow/libs/metrics"
)

// Event is one published domain event as seen by the projector: the wire
// metadata plus the raw payload.
type Event struct {
	EventID uuid.UUID
	OrderID uuid.UUID
	Type    events.Type
	Version int64
	Payload json.RawMessage
}

// ApplyError marks an event the projector could not fold into the read
// model. The event stays published; the read model is stale until the cause
// is fixed, which is an operational concern, not a caller-visible one.
type ApplyError struct {
	EventID uuid.UUID
	Err     error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply event %s: %v", e.EventID, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// Projector folds published order events into the order_summaries read
// model. Delivery is at-least-once: the per-row version watermark makes
// reapplying an already-seen version a no-op.
type Projector struct {
	store  SummaryStore
	logger *slog.Logger
}

func NewProjector(store SummaryStore, logger *slog.Logger) *Projector {
	return &Projector{store: store, logger: logger}
}

func (p *Projector) Apply(ctx context.Context, evt Event) error {
	payload, err := events.DecodePayload(evt.Type, evt.Payload)
	if err != nil {
		// Types this contract version does not know are skippable; a corrupt
		// payload of a known type is a lost event and must surface.
		if errors.Is(err, events.ErrUnknownType) {
			p.logger.Warn("skipping unknown event type", "event_id", evt.EventID, "event_type", evt.Type)
			return nil
		}
		return &ApplyError{EventID: evt.EventID, Err: err}
	}

	tx, err := p.store.Begin(ctx)
	if err != nil {
		return &ApplyError{EventID: evt.EventID, Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sum, found, err := p.store.GetForUpdate(ctx, tx, evt.OrderID)
	if err != nil {
		return &ApplyError{EventID: evt.EventID, Err: err}
	}
	if found && evt.Version <= sum.LastVersion {
		metrics.ProjectionSkipped.Inc()
		p.logger.Info("duplicate event skipped",
			"event_id", evt.EventID,
			"order_id", evt.OrderID,
			"version", evt.Version,
			"last_version", sum.LastVersion,
		)
		return nil
	}
	if !found {
		sum = OrderSummary{OrderID: evt.OrderID}
	}

	p.fold(&sum, payload)
	sum.LastVersion = evt.Version

	if err := p.store.Upsert(ctx, tx, sum); err != nil {
		return &ApplyError{EventID: evt.EventID, Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return &ApplyError{EventID: evt.EventID, Err: err}
	}
	metrics.ProjectionApplied.WithLabelValues(string(evt.Type)).Inc()
	return nil
}

func (p *Projector) fold(sum *OrderSummary, payload any) {
	switch pl := payload.(type) {
	case events.OrderPlacedPayload:
		sum.Status = "placed"
		sum.PlacedAt = pl.PlacedAt
		sum.ItemCount = 0
		sum.TotalCents = 0
		for _, it := range pl.Items {
			sum.ItemCount += it.Quantity
			sum.TotalCents += int64(it.Quantity) * it.UnitPriceCents
		}
	case events.OrderConfirmedPayload:
		sum.Status = "confirmed"
	case events.OrderShippedPayload:
		sum.Status = "shipped"
		sum.Carrier = pl.Carrier
		sum.TrackingRef = pl.TrackingRef
	case events.OrderCancelledPayload:
		sum.Status = "cancelled"
		sum.CancelReason = pl.Reason
		cancelledAt := pl.CancelledAt
		sum.CancelledAt = &cancelledAt
	}
}
