package query

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/orderflow/services/order-projector/internal/projection"
)

// Reader is the read-model access the HTTP layer needs.
type Reader interface {
	Get(ctx context.Context, orderID uuid.UUID) (projection.OrderSummary, error)
	List(ctx context.Context, status string, limit int) ([]projection.OrderSummary, error)
}

// Handler serves order views from the read model. Responses reflect the
// state as of the last successful projection and may lag the write side.
type Handler struct {
	store  Reader
	logger *slog.Logger
}

func NewHandler(store Reader, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

type orderView struct {
	OrderID      string `json:"order_id"`
	Status       string `json:"status"`
	ItemCount    int    `json:"item_count"`
	TotalCents   int64  `json:"total_cents"`
	PlacedAt     string `json:"placed_at,omitempty"`
	CancelledAt  string `json:"cancelled_at,omitempty"`
	CancelReason string `json:"cancel_reason,omitempty"`
	Carrier      string `json:"carrier,omitempty"`
	TrackingRef  string `json:"tracking_ref,omitempty"`
	Version      int64  `json:"version"`
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	orderID, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("order_id")))
	if err != nil {
		http.Error(w, "invalid order_id", http.StatusBadRequest)
		return
	}

	sum, err := h.store.Get(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		h.logger.Error("order summary read failed", "err", err, "order_id", orderID)
		http.Error(w, "temporary failure, retry later", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, toView(sum))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	sums, err := h.store.List(r.Context(), status, limit)
	if err != nil {
		h.logger.Error("order summary list failed", "err", err)
		http.Error(w, "temporary failure, retry later", http.StatusServiceUnavailable)
		return
	}

	views := make([]orderView, 0, len(sums))
	for _, sum := range sums {
		views = append(views, toView(sum))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": views})
}

func toView(sum projection.OrderSummary) orderView {
	v := orderView{
		OrderID:      sum.OrderID.String(),
		Status:       sum.Status,
		ItemCount:    sum.ItemCount,
		TotalCents:   sum.TotalCents,
		CancelReason: sum.CancelReason,
		Carrier:      sum.Carrier,
		TrackingRef:  sum.TrackingRef,
		Version:      sum.LastVersion,
	}
	if !sum.PlacedAt.IsZero() {
		v.PlacedAt = sum.PlacedAt.UTC().Format(time.RFC3339)
	}
	if sum.CancelledAt != nil {
		v.CancelledAt = sum.CancelledAt.UTC().Format(time.RFC3339)
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
