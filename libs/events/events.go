// Package events is the shared contract for order domain events: the bounded
// set of event types, their typed payload shapes, and the payload codec. The
// write side emits these, the projector consumes them; both services depend on
// this package instead of each other's internals.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownType marks an event type this contract version does not know.
// Consumers treat it as skippable; a decode failure on a known type is not.
var ErrUnknownType = errors.New("unknown event type")

// Type identifies the kind of a domain event.
type Type string

const (
	// TypeOrderPlaced records that a draft order was placed with its items.
	TypeOrderPlaced Type = "order.placed"
	// TypeOrderConfirmed records that a placed order was confirmed.
	TypeOrderConfirmed Type = "order.confirmed"
	// TypeOrderShipped records that a confirmed order was handed to a carrier.
	TypeOrderShipped Type = "order.shipped"
	// TypeOrderCancelled records that an order was cancelled before shipping.
	TypeOrderCancelled Type = "order.cancelled"
)

// AggregateOrder is the aggregate type discriminator stored with order events.
const AggregateOrder = "order"

// LineItem is one order line.
type LineItem struct {
	SKU            string `json:"sku"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type OrderPlacedPayload struct {
	Items    []LineItem `json:"items"`
	PlacedAt time.Time  `json:"placed_at"`
}

type OrderConfirmedPayload struct {
	ConfirmedAt time.Time `json:"confirmed_at"`
}

type OrderShippedPayload struct {
	Carrier     string    `json:"carrier"`
	TrackingRef string    `json:"tracking_ref"`
	ShippedAt   time.Time `json:"shipped_at"`
}

type OrderCancelledPayload struct {
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// EncodePayload serializes a payload for storage and the wire.
func EncodePayload(payload any) ([]byte, error) {
	return json.Marshal(payload)
}

// DecodePayload deserializes a raw payload into its typed shape, dispatching
// on the event type tag.
func DecodePayload(t Type, raw []byte) (any, error) {
	switch t {
	case TypeOrderPlaced:
		var p OrderPlacedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeOrderConfirmed:
		var p OrderConfirmedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeOrderShipped:
		var p OrderShippedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeOrderCancelled:
		var p OrderCancelledPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownType, t)
	}
}
