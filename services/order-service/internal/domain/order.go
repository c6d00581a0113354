package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/orderflow/libs/events"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPlaced    Status = "placed"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusCancelled Status = "cancelled"
)

// Order is the order aggregate. State is derived entirely from its event
// stream; intents validate invariants in memory and emit new events without
// touching storage.
type Order struct {
	Root

	status      Status
	items       []events.LineItem
	placedAt    time.Time
	cancelledAt time.Time
	reason      string
	carrier     string
	trackingRef string
}

// NewOrder returns a fresh draft order with no history.
func NewOrder(id uuid.UUID) *Order {
	o := &Order{status: StatusDraft}
	o.Root.id = id
	return o
}

// LoadOrder rebuilds an order by folding its committed events in version order.
func LoadOrder(id uuid.UUID, history []Event) (*Order, error) {
	o := NewOrder(id)
	for _, evt := range history {
		if err := o.Root.replay(evt, o.apply); err != nil {
			return nil, fmt.Errorf("load order %s: %w", id, err)
		}
	}
	return o, nil
}

func (o *Order) Status() Status           { return o.status }
func (o *Order) Items() []events.LineItem { return o.items }
func (o *Order) Carrier() string          { return o.carrier }
func (o *Order) CancelReason() string     { return o.reason }

// Place moves a draft order to placed. Requires at least one line item.
func (o *Order) Place(items []events.LineItem) error {
	if o.status != StatusDraft {
		return invariant("place", "order is %s, only a draft order can be placed", o.status)
	}
	if len(items) == 0 {
		return invariant("place", "an order needs at least one item")
	}
	for _, it := range items {
		if strings.TrimSpace(it.SKU) == "" || it.Quantity <= 0 {
			return invariant("place", "item %q has an empty sku or non-positive quantity", it.SKU)
		}
	}
	return o.record(events.TypeOrderPlaced, events.OrderPlacedPayload{Items: items, PlacedAt: time.Now().UTC()}, o.apply)
}

// Confirm moves a placed order to confirmed.
func (o *Order) Confirm() error {
	if o.status != StatusPlaced {
		return invariant("confirm", "order is %s, only a placed order can be confirmed", o.status)
	}
	return o.record(events.TypeOrderConfirmed, events.OrderConfirmedPayload{ConfirmedAt: time.Now().UTC()}, o.apply)
}

// Ship moves a confirmed order to shipped.
func (o *Order) Ship(carrier, trackingRef string) error {
	if o.status != StatusConfirmed {
		return invariant("ship", "order is %s, only a confirmed order can be shipped", o.status)
	}
	if strings.TrimSpace(carrier) == "" {
		return invariant("ship", "carrier is required")
	}
	return o.record(events.TypeOrderShipped, events.OrderShippedPayload{
		Carrier:     carrier,
		TrackingRef: trackingRef,
		ShippedAt:   time.Now().UTC(),
	}, o.apply)
}

// Cancel cancels a placed or confirmed order. Shipped orders cannot be
// cancelled.
func (o *Order) Cancel(reason string) error {
	switch o.status {
	case StatusPlaced, StatusConfirmed:
	default:
		return invariant("cancel", "order is %s and can no longer be cancelled", o.status)
	}
	return o.record(events.TypeOrderCancelled, events.OrderCancelledPayload{Reason: reason, CancelledAt: time.Now().UTC()}, o.apply)
}

// apply mutates in-memory state from one event. It is the single transition
// path shared by replay and by intents, which keeps replay deterministic.
func (o *Order) apply(evt Event) error {
	switch p := evt.Payload.(type) {
	case events.OrderPlacedPayload:
		o.status = StatusPlaced
		o.items = p.Items
		o.placedAt = p.PlacedAt
	case events.OrderConfirmedPayload:
		o.status = StatusConfirmed
	case events.OrderShippedPayload:
		o.status = StatusShipped
		o.carrier = p.Carrier
		o.trackingRef = p.TrackingRef
	case events.OrderCancelledPayload:
		o.status = StatusCancelled
		o.reason = p.Reason
		o.cancelledAt = p.CancelledAt
	default:
		return fmt.Errorf("order: unhandled event type %q", evt.Type)
	}
	return nil
}
