package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/orderflow/libs/events"
)

// Root is the base every event-sourced aggregate embeds. It tracks the
// aggregate identity, the highest applied version, and the events emitted
// since the last load, which the command handler persists and then clears.
type Root struct {
	id      uuid.UUID
	version int64
	pending []Event
}

func (r *Root) ID() uuid.UUID { return r.id }

// Version is the version of the last applied event; 0 for a fresh aggregate.
func (r *Root) Version() int64 { return r.version }

// Uncommitted returns the events emitted by intents since the aggregate was
// loaded, in emission order.
func (r *Root) Uncommitted() []Event { return r.pending }

// ClearUncommitted drops the pending events after they have been persisted.
func (r *Root) ClearUncommitted() { r.pending = nil }

// replay applies one already-committed event, enforcing contiguous versions.
func (r *Root) replay(evt Event, apply func(Event) error) error {
	if evt.Version != r.version+1 {
		return fmt.Errorf("replay out of order: got version %d after %d", evt.Version, r.version)
	}
	if err := apply(evt); err != nil {
		return err
	}
	r.id = evt.AggregateID
	r.version = evt.Version
	return nil
}

// record runs a new event through the same apply path used during replay and
// queues it as uncommitted, tagged with the next version.
func (r *Root) record(t events.Type, payload any, apply func(Event) error) error {
	evt := Event{
		ID:          uuid.New(),
		AggregateID: r.id,
		Type:        t,
		Version:     r.version + 1,
		OccurredAt:  time.Now().UTC(),
		Payload:     payload,
	}
	if err := apply(evt); err != nil {
		return err
	}
	r.version = evt.Version
	r.pending = append(r.pending, evt)
	return nil
}
