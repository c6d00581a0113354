package projection

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/orderflow/libs/events"
)

// memSummaryStore applies upserts on tx commit, like the Postgres store does.
type memSummaryStore struct {
	rows map[uuid.UUID]OrderSummary
}

var _ SummaryStore = (*memSummaryStore)(nil)

func newMemSummaryStore() *memSummaryStore {
	return &memSummaryStore{rows: map[uuid.UUID]OrderSummary{}}
}

type memTx struct {
	pgx.Tx
	onCommit []func()
}

func (t *memTx) Commit(ctx context.Context) error {
	for _, apply := range t.onCommit {
		apply()
	}
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error { return nil }

func (s *memSummaryStore) Begin(ctx context.Context) (pgx.Tx, error) {
	return &memTx{}, nil
}

func (s *memSummaryStore) GetForUpdate(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (OrderSummary, bool, error) {
	sum, ok := s.rows[orderID]
	return sum, ok, nil
}

func (s *memSummaryStore) Upsert(ctx context.Context, tx pgx.Tx, sum OrderSummary) error {
	mtx := tx.(*memTx)
	mtx.onCommit = append(mtx.onCommit, func() {
		sum.UpdatedAt = time.Now().UTC()
		s.rows[sum.OrderID] = sum
	})
	return nil
}

func testProjector(store *memSummaryStore) *Projector {
	return NewProjector(store, slog.New(slog.DiscardHandler))
}

func wireEvent(t *testing.T, orderID uuid.UUID, typ events.Type, version int64, payload any) Event {
	t.Helper()
	raw, err := events.EncodePayload(payload)
	if err != nil {
		t.Fatal(err)
	}
	return Event{
		EventID: uuid.New(),
		OrderID: orderID,
		Type:    typ,
		Version: version,
		Payload: raw,
	}
}

func placedEvent(t *testing.T, orderID uuid.UUID) Event {
	t.Helper()
	return wireEvent(t, orderID, events.TypeOrderPlaced, 1, events.OrderPlacedPayload{
		Items: []events.LineItem{
			{SKU: "sku-1", Quantity: 2, UnitPriceCents: 900},
			{SKU: "sku-2", Quantity: 1, UnitPriceCents: 1500},
		},
		PlacedAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	})
}

func TestProjectorFoldsLifecycle(t *testing.T) {
	store := newMemSummaryStore()
	p := testProjector(store)
	orderID := uuid.New()
	ctx := context.Background()

	steps := []Event{
		placedEvent(t, orderID),
		wireEvent(t, orderID, events.TypeOrderConfirmed, 2, events.OrderConfirmedPayload{ConfirmedAt: time.Now().UTC()}),
		wireEvent(t, orderID, events.TypeOrderShipped, 3, events.OrderShippedPayload{Carrier: "acme-freight", TrackingRef: "TRK-9", ShippedAt: time.Now().UTC()}),
	}
	for _, evt := range steps {
		if err := p.Apply(ctx, evt); err != nil {
			t.Fatalf("apply %s: %v", evt.Type, err)
		}
	}

	sum := store.rows[orderID]
	if sum.Status != "shipped" {
		t.Fatalf("expected status shipped, got %q", sum.Status)
	}
	if sum.ItemCount != 3 {
		t.Fatalf("expected item count 3, got %d", sum.ItemCount)
	}
	if sum.TotalCents != 2*900+1500 {
		t.Fatalf("expected total %d, got %d", 2*900+1500, sum.TotalCents)
	}
	if sum.Carrier != "acme-freight" || sum.TrackingRef != "TRK-9" {
		t.Fatalf("shipping fields not folded: %+v", sum)
	}
	if sum.LastVersion != 3 {
		t.Fatalf("expected watermark 3, got %d", sum.LastVersion)
	}
}

func TestProjectorIdempotentOnRedelivery(t *testing.T) {
	store := newMemSummaryStore()
	p := testProjector(store)
	orderID := uuid.New()
	ctx := context.Background()

	placed := placedEvent(t, orderID)
	confirmed := wireEvent(t, orderID, events.TypeOrderConfirmed, 2, events.OrderConfirmedPayload{ConfirmedAt: time.Now().UTC()})

	for _, evt := range []Event{placed, confirmed} {
		if err := p.Apply(ctx, evt); err != nil {
			t.Fatal(err)
		}
	}
	want := store.rows[orderID]

	// Redeliver both; the watermark makes each a no-op.
	for _, evt := range []Event{placed, confirmed, confirmed} {
		if err := p.Apply(ctx, evt); err != nil {
			t.Fatalf("redelivery must not error: %v", err)
		}
	}

	got := store.rows[orderID]
	got.UpdatedAt = want.UpdatedAt
	if got != want {
		t.Fatalf("redelivery changed the row:\n want %+v\n got  %+v", want, got)
	}
}

func TestProjectorSkipsStaleVersion(t *testing.T) {
	store := newMemSummaryStore()
	p := testProjector(store)
	orderID := uuid.New()
	ctx := context.Background()

	if err := p.Apply(ctx, placedEvent(t, orderID)); err != nil {
		t.Fatal(err)
	}
	cancelled := wireEvent(t, orderID, events.TypeOrderCancelled, 2, events.OrderCancelledPayload{
		Reason: "late", CancelledAt: time.Now().UTC(),
	})
	if err := p.Apply(ctx, cancelled); err != nil {
		t.Fatal(err)
	}

	// An old placed event arrives again after the cancel; it must not win.
	if err := p.Apply(ctx, placedEvent(t, orderID)); err != nil {
		t.Fatal(err)
	}

	sum := store.rows[orderID]
	if sum.Status != "cancelled" {
		t.Fatalf("stale redelivery overwrote status: %q", sum.Status)
	}
	if sum.CancelReason != "late" || sum.CancelledAt == nil {
		t.Fatalf("cancel fields lost: %+v", sum)
	}
	if sum.LastVersion != 2 {
		t.Fatalf("watermark moved backwards: %d", sum.LastVersion)
	}
}

func TestProjectorSurfacesCorruptPayload(t *testing.T) {
	store := newMemSummaryStore()
	p := testProjector(store)
	orderID := uuid.New()

	evt := Event{
		EventID: uuid.New(),
		OrderID: orderID,
		Type:    events.TypeOrderPlaced,
		Version: 1,
		Payload: json.RawMessage(`{"items":"not-an-array"}`),
	}
	err := p.Apply(context.Background(), evt)
	var applyErr *ApplyError
	if !errors.As(err, &applyErr) {
		t.Fatalf("corrupt payload of a known type must fail, got %v", err)
	}
	if applyErr.EventID != evt.EventID {
		t.Fatalf("apply error names event %s, want %s", applyErr.EventID, evt.EventID)
	}
	if _, ok := store.rows[orderID]; ok {
		t.Fatal("failed apply must not write a summary row")
	}
}

func TestProjectorSkipsUnknownEventType(t *testing.T) {
	store := newMemSummaryStore()
	p := testProjector(store)
	orderID := uuid.New()

	evt := Event{
		EventID: uuid.New(),
		OrderID: orderID,
		Type:    events.Type("order.archived"),
		Version: 1,
		Payload: json.RawMessage(`{"archived_at":"2025-06-01T10:00:00Z"}`),
	}
	if err := p.Apply(context.Background(), evt); err != nil {
		t.Fatalf("unknown event type must be skipped, not fail: %v", err)
	}
	if _, ok := store.rows[orderID]; ok {
		t.Fatal("unknown event must not create a summary row")
	}
}
