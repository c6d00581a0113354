package query

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/orderflow/libs/db"
	"github.com/md-rashed-zaman/orderflow/services/order-projector/internal/projection"
)

// ErrNotFound means no summary row exists for the order, either because the
// order does not exist or because its first event has not been projected yet.
var ErrNotFound = errors.New("order summary not found")

// Store reads order summaries. It never touches the event store: results are
// eventually consistent as of the last successfully projected event, not the
// most recent committed command.
type Store struct {
	pool *db.Pool
}

func NewStore(pool *db.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Get(ctx context.Context, orderID uuid.UUID) (projection.OrderSummary, error) {
	var sum projection.OrderSummary
	var cancelledAt *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT order_id, status, item_count, total_cents, placed_at, cancelled_at,
			COALESCE(cancel_reason, ''), COALESCE(carrier, ''), COALESCE(tracking_ref, ''),
			last_version, updated_at
		FROM order_summaries
		WHERE order_id = $1
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
		if errors.Is(err, pgx.ErrNoRows) {
			return projection.OrderSummary{}, ErrNotFound
		}
		return projection.OrderSummary{}, err
	}
	sum.CancelledAt = cancelledAt
	return sum, nil
}

func (s *Store) List(ctx context.Context, status string, limit int) ([]projection.OrderSummary, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT order_id, status, item_count, total_cents, placed_at, cancelled_at,
			COALESCE(cancel_reason, ''), COALESCE(carrier, ''), COALESCE(tracking_ref, ''),
			last_version, updated_at
		FROM order_summaries
		WHERE ($1 = '' OR status = $1)
		ORDER BY updated_at DESC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []projection.OrderSummary
	for rows.Next() {
		var sum projection.OrderSummary
		var cancelledAt *time.Time
		if err := rows.Scan(
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
		); err != nil {
			return nil, err
		}
		sum.CancelledAt = cancelledAt
		out = append(out, sum)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
