package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/orderflow/libs/events"
)

// Event is a domain event produced by an aggregate intent. Version is the
// aggregate version the event produced; versions are contiguous starting at 1.
type Event struct {
	ID          uuid.UUID
	AggregateID uuid.UUID
	Type        events.Type
	Version     int64
	OccurredAt  time.Time
	Payload     any
}
