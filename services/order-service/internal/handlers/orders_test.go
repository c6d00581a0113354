package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/orderflow/services/order-service/internal/command"
	"github.com/md-rashed-zaman/orderflow/services/order-service/internal/domain"
	"github.com/md-rashed-zaman/orderflow/services/order-service/internal/eventstore"
)

type stubCommands struct {
	res  command.Result
	err  error
	last command.Command
}

func (s *stubCommands) Handle(ctx context.Context, cmd command.Command) (command.Result, error) {
	s.last = cmd
	return s.res, s.err
}

func newTestOrderHandler(stub *stubCommands) *OrderHandler {
	return NewOrderHandler(stub, slog.New(slog.DiscardHandler))
}

func postJSON(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "http://example.com", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	return rw
}

func TestPlaceReturnsCreatedWithVersion(t *testing.T) {
	stub := &stubCommands{res: command.Result{CommittedVersion: 1}}
	h := newTestOrderHandler(stub)

	rw := postJSON(t, h.Place, `{"items":[{"sku":"sku-1","quantity":2,"unit_price_cents":900}]}`)
	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw.Code, rw.Body.String())
	}

	var resp commandResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Version != 1 {
		t.Fatalf("expected version 1, got %d", resp.Version)
	}
	if _, err := uuid.Parse(resp.OrderID); err != nil {
		t.Fatalf("response order_id is not a uuid: %q", resp.OrderID)
	}

	place, ok := stub.last.(command.PlaceOrder)
	if !ok {
		t.Fatalf("expected PlaceOrder, got %T", stub.last)
	}
	if len(place.Items) != 1 || place.Items[0].SKU != "sku-1" {
		t.Fatalf("items not carried through: %+v", place.Items)
	}
}

func TestPlaceRejectsEmptyItems(t *testing.T) {
	stub := &stubCommands{}
	h := newTestOrderHandler(stub)

	rw := postJSON(t, h.Place, `{"items":[]}`)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
	if stub.last != nil {
		t.Fatal("malformed request must not reach the command handler")
	}
}

func TestConfirmErrorMapping(t *testing.T) {
	orderID := uuid.New()
	body := fmt.Sprintf(`{"order_id":%q}`, orderID)

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invariant violation", &domain.InvariantViolationError{Intent: "confirm", Reason: "only a placed order can be confirmed"}, http.StatusUnprocessableEntity},
		{"concurrency conflict", eventstore.ErrConcurrencyConflict, http.StatusConflict},
		{"not found", fmt.Errorf("%s: %w", orderID, command.ErrNotFound), http.StatusNotFound},
		{"persistence failure", &command.PersistenceError{Err: fmt.Errorf("pg down")}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestOrderHandler(&stubCommands{err: tc.err})
			rw := postJSON(t, h.Confirm, body)
			if rw.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rw.Code, rw.Body.String())
			}
		})
	}
}

func TestShipValidatesInput(t *testing.T) {
	stub := &stubCommands{}
	h := newTestOrderHandler(stub)

	rw := postJSON(t, h.Ship, `{"order_id":"not-a-uuid","carrier":"acme"}`)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad uuid, got %d", rw.Code)
	}

	rw = postJSON(t, h.Ship, fmt.Sprintf(`{"order_id":%q,"carrier":"  "}`, uuid.New()))
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank carrier, got %d", rw.Code)
	}
	if stub.last != nil {
		t.Fatal("invalid requests must not reach the command handler")
	}
}

func TestCancelPassesExpectedVersion(t *testing.T) {
	stub := &stubCommands{res: command.Result{CommittedVersion: 2}}
	h := newTestOrderHandler(stub)
	orderID := uuid.New()

	rw := postJSON(t, h.Cancel, fmt.Sprintf(`{"order_id":%q,"reason":"late","expected_version":1}`, orderID))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}

	cancel, ok := stub.last.(command.CancelOrder)
	if !ok {
		t.Fatalf("expected CancelOrder, got %T", stub.last)
	}
	if cancel.ExpectedVersion == nil || *cancel.ExpectedVersion != 1 {
		t.Fatalf("expected_version not carried through: %v", cancel.ExpectedVersion)
	}
	if cancel.Reason != "late" {
		t.Fatalf("reason not carried through: %q", cancel.Reason)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestOrderHandler(&stubCommands{})
	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	rw := httptest.NewRecorder()
	h.Place(rw, req)
	if rw.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rw.Code)
	}
}
