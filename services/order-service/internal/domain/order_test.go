package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/orderflow/libs/events"
)

func twoItems() []events.LineItem {
	return []events.LineItem{
		{SKU: "sku-1", Quantity: 1, UnitPriceCents: 1500},
		{SKU: "sku-2", Quantity: 2, UnitPriceCents: 700},
	}
}

func TestOrderLifecycle_PlaceCancel(t *testing.T) {
	o := NewOrder(uuid.New())

	if err := o.Place(twoItems()); err != nil {
		t.Fatalf("place failed: %v", err)
	}
	if o.Version() != 1 {
		t.Fatalf("expected version 1 after place, got %d", o.Version())
	}
	if got := o.Uncommitted()[0].Type; got != events.TypeOrderPlaced {
		t.Fatalf("expected %s, got %s", events.TypeOrderPlaced, got)
	}

	if err := o.Cancel("changed my mind"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if o.Version() != 2 {
		t.Fatalf("expected version 2 after cancel, got %d", o.Version())
	}
	if got := o.Uncommitted()[1].Type; got != events.TypeOrderCancelled {
		t.Fatalf("expected %s, got %s", events.TypeOrderCancelled, got)
	}
	if o.Status() != StatusCancelled {
		t.Fatalf("expected status cancelled, got %s", o.Status())
	}

	err := o.Ship("acme-freight", "TRACK-1")
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected invariant violation shipping a cancelled order, got %v", err)
	}
	if o.Version() != 2 || len(o.Uncommitted()) != 2 {
		t.Fatalf("failed intent must not change state: version %d, %d pending", o.Version(), len(o.Uncommitted()))
	}
}

func TestOrderInvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(o *Order)
		act   func(o *Order) error
	}{
		{
			name:  "place without items",
			setup: func(o *Order) {},
			act:   func(o *Order) error { return o.Place(nil) },
		},
		{
			name:  "place with empty sku",
			setup: func(o *Order) {},
			act: func(o *Order) error {
				return o.Place([]events.LineItem{{SKU: "  ", Quantity: 1}})
			},
		},
		{
			name:  "confirm a draft",
			setup: func(o *Order) {},
			act:   func(o *Order) error { return o.Confirm() },
		},
		{
			name: "ship a placed order",
			setup: func(o *Order) {
				if err := o.Place(twoItems()); err != nil {
					t.Fatal(err)
				}
			},
			act: func(o *Order) error { return o.Ship("acme-freight", "TRACK-1") },
		},
		{
			name: "cancel a shipped order",
			setup: func(o *Order) {
				for _, err := range []error{o.Place(twoItems()), o.Confirm(), o.Ship("acme-freight", "TRACK-1")} {
					if err != nil {
						t.Fatal(err)
					}
				}
			},
			act: func(o *Order) error { return o.Cancel("too late") },
		},
		{
			name: "confirm twice",
			setup: func(o *Order) {
				for _, err := range []error{o.Place(twoItems()), o.Confirm()} {
					if err != nil {
						t.Fatal(err)
					}
				}
			},
			act: func(o *Order) error { return o.Confirm() },
		},
		{
			name: "ship without a carrier",
			setup: func(o *Order) {
				for _, err := range []error{o.Place(twoItems()), o.Confirm()} {
					if err != nil {
						t.Fatal(err)
					}
				}
			},
			act: func(o *Order) error { return o.Ship(" ", "") },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := NewOrder(uuid.New())
			tc.setup(o)
			before := o.Version()
			if err := tc.act(o); !errors.Is(err, ErrInvariantViolation) {
				t.Fatalf("expected invariant violation, got %v", err)
			}
			if o.Version() != before {
				t.Fatalf("failed intent changed version from %d to %d", before, o.Version())
			}
		})
	}
}

func TestOrderReplayDeterminism(t *testing.T) {
	id := uuid.New()
	live := NewOrder(id)
	for _, err := range []error{
		live.Place(twoItems()),
		live.Confirm(),
		live.Ship("acme-freight", "TRACK-9"),
	} {
		if err != nil {
			t.Fatal(err)
		}
	}

	replayed, err := LoadOrder(id, live.Uncommitted())
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	if replayed.Version() != live.Version() {
		t.Fatalf("replayed version %d, live %d", replayed.Version(), live.Version())
	}
	if replayed.Status() != live.Status() {
		t.Fatalf("replayed status %s, live %s", replayed.Status(), live.Status())
	}
	if replayed.Carrier() != live.Carrier() {
		t.Fatalf("replayed carrier %q, live %q", replayed.Carrier(), live.Carrier())
	}
	if len(replayed.Items()) != len(live.Items()) {
		t.Fatalf("replayed %d items, live %d", len(replayed.Items()), len(live.Items()))
	}
	if len(replayed.Uncommitted()) != 0 {
		t.Fatalf("replayed aggregate must have no pending events, got %d", len(replayed.Uncommitted()))
	}
}

func TestLoadOrderRejectsVersionGaps(t *testing.T) {
	id := uuid.New()
	src := NewOrder(id)
	for _, err := range []error{src.Place(twoItems()), src.Confirm()} {
		if err != nil {
			t.Fatal(err)
		}
	}

	gapped := []Event{src.Uncommitted()[1]} // starts at version 2
	if _, err := LoadOrder(id, gapped); err == nil {
		t.Fatal("expected replay of a gapped stream to fail")
	}
}
