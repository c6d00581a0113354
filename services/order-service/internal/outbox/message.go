package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message is one not-yet-published domain event. A row is written in the same
// transaction as its event-store row and is mutated only by the publisher.
type Message struct {
	ID            int64
	EventID       uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       json.RawMessage
	Version       int64
	CreatedAt     time.Time
	Processed     bool
	ProcessedAt   *time.Time
	RetryCount    int
	ClaimedUntil  *time.Time
	LastError     string
	Traceparent   string
	Tracestate    string
}
