package projection

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/orderflow/libs/db"
)

// OrderSummary is the denormalized read model row for one order.
// LastVersion is the idempotency watermark: events at or below it have
// already been folded in and are skipped on redelivery.
type OrderSummary struct {
	OrderID      uuid.UUID
	Status       string
	ItemCount    int
	TotalCents   int64
	PlacedAt     time.Time
	CancelledAt  *time.Time
	CancelReason string
	Carrier      string
	TrackingRef  string
	LastVersion  int64
	UpdatedAt    time.Time
}

// SummaryStore persists order summaries. GetForUpdate locks the row so
// concurrent projectors for the same order are serialized; different orders
// project in parallel.
type SummaryStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (OrderSummary, bool, error)
	Upsert(ctx context.Context, tx pgx.Tx, s OrderSummary) error
}

type PostgresSummaryStore struct {
	pool *db.Pool
}

func NewPostgresSummaryStore(pool *db.Pool) *PostgresSummaryStore {
	return &PostgresSummaryStore{pool: pool}
}

func (s *PostgresSummaryStore) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}

func (s *PostgresSummaryStore) GetForUpdate(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (OrderSummary, bool, error) {
	var sum OrderSummary
	var cancelledAt *time.Time
	err := tx.QueryRow(ctx, `
		SELECT order_id, status, item_count, total_cents, placed_at, cancelled_at,
			COALESCE(cancel_reason, ''), COALESCE(carrier, ''), COALESCE(tracking_ref, ''),
			last_version, updated_at
		FROM order_summaries
		WHERE order_id = $1
		FOR UPDATE
	`, orderID).Scan(
		&sum.OrderID,
		&sum.Status,
		&sum.ItemCount,
		&sum.TotalCents,
		&sum.PlacedAt,
		&cancelledAt,
		&sum.CancelReason,
		&sum.Carrier,
		&sum.TrackingRef,
		&sum.LastVersion,
		&sum.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return OrderSummary{}, false, nil
		}
		return OrderSummary{}, false, err
	}
	sum.CancelledAt = cancelledAt
	return sum, true, nil
}

func (s *PostgresSummaryStore) Upsert(ctx context.Context, tx pgx.Tx, sum OrderSummary) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_summaries
			(order_id, status, item_count, total_cents, placed_at, cancelled_at,
			cancel_reason, carrier, tracking_ref, last_version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (order_id) DO UPDATE SET
			status = EXCLUDED.status,
			item_count = EXCLUDED.item_count,
			total_cents = EXCLUDED.total_cents,
			placed_at = EXCLUDED.placed_at,
			cancelled_at = EXCLUDED.cancelled_at,
			cancel_reason = EXCLUDED.cancel_reason,
			carrier = EXCLUDED.carrier,
			tracking_ref = EXCLUDED.tracking_ref,
			last_version = EXCLUDED.last_version,
			updated_at = now()
	`, sum.OrderID, sum.Status, sum.ItemCount, sum.TotalCents, sum.PlacedAt, sum.CancelledAt,
		sum.CancelReason, sum.Carrier, sum.TrackingRef, sum.LastVersion)
	return err
}

var _ SummaryStore = (*PostgresSummaryStore)(nil)
