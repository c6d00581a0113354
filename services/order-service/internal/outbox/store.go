package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Store is the outbox persistence contract. Insert runs in the caller's
// transaction; the claim/mark operations are owned by the publisher loop.
type Store interface {
	// Insert writes one outbox row per message inside tx. Neither this nor
	// the event append commits on its own; the command handler owns the
	// transaction boundary.
	Insert(ctx context.Context, tx pgx.Tx, msgs []Message) error

	// ClaimPending leases up to batch unprocessed rows whose retry count is
	// below maxRetries, oldest first. A leased row is invisible to other
	// publisher instances until the lease expires, which keeps duplicate
	// publication to the rare crash-while-claimed window.
	ClaimPending(ctx context.Context, batch, maxRetries int, lease time.Duration) ([]Message, error)

	// MarkProcessed flags a row as published and releases its lease.
	MarkProcessed(ctx context.Context, id int64) error

	// MarkFailed increments the retry count, records the error and releases
	// the lease so a later poll can retry the row.
	MarkFailed(ctx context.Context, id int64, cause string) error

	// CountExhausted reports rows that hit the retry ceiling and now need
	// operator attention; they are never claimed again.
	CountExhausted(ctx context.Context, maxRetries int) (int64, error)

	// Lag returns the age of the oldest unprocessed row, zero when empty.
	Lag(ctx context.Context) (time.Duration, error)
}
