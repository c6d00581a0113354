package outbox

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/orderflow/libs/db"
)

// PostgresStore implements Store against the same database that holds the
// event streams, which is what makes the event-implies-outbox-row guarantee
// possible.
type PostgresStore struct {
	pool *db.Pool
}

func NewPostgresStore(pool *db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Insert(ctx context.Context, tx pgx.Tx, msgs []Message) error {
	for _, m := range msgs {
		_, err := tx.Exec(ctx, `
			INSERT INTO outbox_messages
				(event_id, aggregate_type, aggregate_id, event_type, payload, version, traceparent, tracestate)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, m.EventID, m.AggregateType, m.AggregateID, m.EventType, m.Payload, m.Version, m.Traceparent, m.Tracestate)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) ClaimPending(ctx context.Context, batch, maxRetries int, lease time.Duration) ([]Message, error) {
	if batch <= 0 {
		batch = 100
	}
	rows, err := s.pool.Query(ctx, `
		WITH cte AS (
			SELECT id
			FROM outbox_messages
			WHERE NOT processed
				AND retry_count < $2
				AND (claimed_until IS NULL OR claimed_until < now())
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE outbox_messages o
		SET claimed_until = now() + $3::interval
		FROM cte
		WHERE o.id = cte.id
		RETURNING o.id, o.event_id, o.aggregate_type, o.aggregate_id, o.event_type,
			o.payload, o.version, o.created_at, o.retry_count, o.traceparent, o.tracestate
	`, batch, maxRetries, fmt.Sprintf("%d milliseconds", lease.Milliseconds()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.EventID, &m.AggregateType, &m.AggregateID, &m.EventType,
			&m.Payload, &m.Version, &m.CreatedAt, &m.RetryCount, &m.Traceparent, &m.Tracestate); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	// UPDATE ... RETURNING does not guarantee row order; restore creation order.
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	return msgs, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox_messages
		SET processed = true,
			processed_at = now(),
			claimed_until = NULL,
			last_error = NULL
		WHERE id = $1
	`, id)
	return err
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id int64, cause string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox_messages
		SET retry_count = retry_count + 1,
			claimed_until = NULL,
			last_error = $2
		WHERE id = $1
	`, id, cause)
	return err
}

func (s *PostgresStore) CountExhausted(ctx context.Context, maxRetries int) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM outbox_messages
		WHERE NOT processed AND retry_count >= $1
	`, maxRetries).Scan(&n)
	return n, err
}

func (s *PostgresStore) Lag(ctx context.Context) (time.Duration, error) {
	var seconds *float64
	err := s.pool.QueryRow(ctx, `
		SELECT EXTRACT(EPOCH FROM (now() - MIN(created_at)))
		FROM outbox_messages
		WHERE NOT processed
	`).Scan(&seconds)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	if seconds == nil {
		return 0, nil
	}
	return time.Duration(*seconds * float64(time.Second)), nil
}

var _ Store = (*PostgresStore)(nil)
