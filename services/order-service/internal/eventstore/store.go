package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/orderflow/libs/db"
	"github.com/md-rashed-zaman/orderflow/libs/events"
	"github.com/md-rashed-zaman/orderflow/services/order-service/internal/domain"
)

// ErrConcurrencyConflict means the stream head moved past the expected
// version between load and append. The command handler reloads and retries.
var ErrConcurrencyConflict = errors.New("concurrency conflict: expected version is stale")

// StoredEvent is one immutable row of an aggregate's event stream.
type StoredEvent struct {
	ID            uuid.UUID
	AggregateID   uuid.UUID
	AggregateType string
	Type          events.Type
	Payload       json.RawMessage
	Version       int64
	OccurredAt    time.Time
}

// Store persists event streams in Postgres. Appends never commit on their
// own: the caller supplies the transaction so event rows and outbox rows
// share one atomic scope.
type Store struct {
	pool *db.Pool
}

func NewStore(pool *db.Pool) *Store {
	return &Store{pool: pool}
}

// ReadStream returns all events for an aggregate in ascending version order.
func (s *Store) ReadStream(ctx context.Context, aggregateID uuid.UUID) ([]StoredEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, aggregate_id, aggregate_type, event_type, payload, version, occurred_at
		FROM events
		WHERE aggregate_id = $1
		ORDER BY version ASC
	`, aggregateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stream []StoredEvent
	for rows.Next() {
		var evt StoredEvent
		if err := rows.Scan(&evt.ID, &evt.AggregateID, &evt.AggregateType, &evt.Type, &evt.Payload, &evt.Version, &evt.OccurredAt); err != nil {
			return nil, err
		}
		stream = append(stream, evt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return stream, nil
}

// Append persists newEvents with versions expectedVersion+1.. inside the
// caller's transaction, but only if the stream head still equals
// expectedVersion. On a stale expected version it returns
// ErrConcurrencyConflict and writes nothing; the unique index on
// (aggregate_id, version) backstops writers racing past the head check.
// Returns the committed version.
func (s *Store) Append(ctx context.Context, tx pgx.Tx, aggregateID uuid.UUID, aggregateType string, expectedVersion int64, newEvents []domain.Event) (int64, error) {
	if len(newEvents) == 0 {
		return expectedVersion, nil
	}

	var head int64
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = $1
	`, aggregateID).Scan(&head)
	if err != nil {
		return 0, err
	}
	if head != expectedVersion {
		return 0, fmt.Errorf("aggregate %s at version %d, expected %d: %w", aggregateID, head, expectedVersion, ErrConcurrencyConflict)
	}

	version := expectedVersion
	for _, evt := range newEvents {
		version++
		if evt.Version != version {
			return 0, fmt.Errorf("append: event %s has version %d, want %d", evt.ID, evt.Version, version)
		}
		payload, err := events.EncodePayload(evt.Payload)
		if err != nil {
			return 0, err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO events (event_id, aggregate_id, aggregate_type, event_type, payload, version, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, evt.ID, aggregateID, aggregateType, evt.Type, payload, evt.Version, evt.OccurredAt)
		if err != nil {
			if isUniqueViolation(err) {
				return 0, fmt.Errorf("aggregate %s version %d already written: %w", aggregateID, evt.Version, ErrConcurrencyConflict)
			}
			return 0, err
		}
	}
	return version, nil
}

// Decode converts a stored event back into a typed domain event.
func Decode(evt StoredEvent) (domain.Event, error) {
	payload, err := events.DecodePayload(evt.Type, evt.Payload)
	if err != nil {
		return domain.Event{}, err
	}
	return domain.Event{
		ID:          evt.ID,
		AggregateID: evt.AggregateID,
		Type:        evt.Type,
		Version:     evt.Version,
		OccurredAt:  evt.OccurredAt,
		Payload:     payload,
	}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
