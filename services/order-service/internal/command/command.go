package command

import (
	"github.com/google/uuid"
	"github.com/md-rashed-zaman/orderflow/libs/events"
)

// Command is one validated write intent against a single order aggregate.
// ExpectedVersion, where present, lets callers detect conflicts against the
// state they last observed instead of relying on the handler's retry loop.
type Command interface {
	OrderID() uuid.UUID
	Name() string
	expectedVersion() *int64
}

type PlaceOrder struct {
	ID    uuid.UUID
	Items []events.LineItem
}

func (c PlaceOrder) OrderID() uuid.UUID      { return c.ID }
func (c PlaceOrder) Name() string            { return "place_order" }
func (c PlaceOrder) expectedVersion() *int64 { return nil }

type ConfirmOrder struct {
	ID              uuid.UUID
	ExpectedVersion *int64
}

func (c ConfirmOrder) OrderID() uuid.UUID      { return c.ID }
func (c ConfirmOrder) Name() string            { return "confirm_order" }
func (c ConfirmOrder) expectedVersion() *int64 { return c.ExpectedVersion }

type ShipOrder struct {
	ID              uuid.UUID
	Carrier         string
	TrackingRef     string
	ExpectedVersion *int64
}

func (c ShipOrder) OrderID() uuid.UUID      { return c.ID }
func (c ShipOrder) Name() string            { return "ship_order" }
func (c ShipOrder) expectedVersion() *int64 { return c.ExpectedVersion }

type CancelOrder struct {
	ID              uuid.UUID
	Reason          string
	ExpectedVersion *int64
}

func (c CancelOrder) OrderID() uuid.UUID      { return c.ID }
func (c CancelOrder) Name() string            { return "cancel_order" }
func (c CancelOrder) expectedVersion() *int64 { return c.ExpectedVersion }

// Result reports the stream version the command committed.
type Result struct {
	CommittedVersion int64
}
