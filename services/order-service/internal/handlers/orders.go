package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/orderflow/libs/events"
	"github.com/md-rashed-zaman/orderflow/services/order-service/internal/command"
	"github.com/md-rashed-zaman/orderflow/services/order-service/internal/domain"
	"github.com/md-rashed-zaman/orderflow/services/order-service/internal/eventstore"
)

// CommandHandler is the write-side entry point the HTTP layer delegates to.
type CommandHandler interface {
	Handle(ctx context.Context, cmd command.Command) (command.Result, error)
}

type OrderHandler struct {
	commands CommandHandler
	logger   *slog.Logger
}

func NewOrderHandler(commands CommandHandler, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{commands: commands, logger: logger}
}

type lineItem struct {
	SKU            string `json:"sku"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type placeOrderRequest struct {
	OrderID string     `json:"order_id"`
	Items   []lineItem `json:"items"`
}

type confirmOrderRequest struct {
	OrderID         string `json:"order_id"`
	ExpectedVersion *int64 `json:"expected_version"`
}

type shipOrderRequest struct {
	OrderID         string `json:"order_id"`
	Carrier         string `json:"carrier"`
	TrackingRef     string `json:"tracking_ref"`
	ExpectedVersion *int64 `json:"expected_version"`
}

type cancelOrderRequest struct {
	OrderID         string `json:"order_id"`
	Reason          string `json:"reason"`
	ExpectedVersion *int64 `json:"expected_version"`
}

type commandResponse struct {
	OrderID string `json:"order_id"`
	Version int64  `json:"version"`
}

func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	orderID := uuid.New()
	if strings.TrimSpace(req.OrderID) != "" {
		parsed, err := uuid.Parse(req.OrderID)
		if err != nil {
			http.Error(w, "invalid order_id", http.StatusBadRequest)
			return
		}
		orderID = parsed
	}
	if len(req.Items) == 0 {
		http.Error(w, "items are required", http.StatusBadRequest)
		return
	}

	items := make([]events.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, events.LineItem{
			SKU:            strings.TrimSpace(it.SKU),
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}

	res, err := h.commands.Handle(r.Context(), command.PlaceOrder{ID: orderID, Items: items})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, commandResponse{OrderID: orderID.String(), Version: res.CommittedVersion})
}

func (h *OrderHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req confirmOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	orderID, err := uuid.Parse(strings.TrimSpace(req.OrderID))
	if err != nil {
		http.Error(w, "invalid order_id", http.StatusBadRequest)
		return
	}

	res, err := h.commands.Handle(r.Context(), command.ConfirmOrder{ID: orderID, ExpectedVersion: req.ExpectedVersion})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{OrderID: orderID.String(), Version: res.CommittedVersion})
}

func (h *OrderHandler) Ship(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req shipOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	orderID, err := uuid.Parse(strings.TrimSpace(req.OrderID))
	if err != nil {
		http.Error(w, "invalid order_id", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Carrier) == "" {
		http.Error(w, "carrier is required", http.StatusBadRequest)
		return
	}

	res, err := h.commands.Handle(r.Context(), command.ShipOrder{
		ID:              orderID,
		Carrier:         strings.TrimSpace(req.Carrier),
		TrackingRef:     strings.TrimSpace(req.TrackingRef),
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{OrderID: orderID.String(), Version: res.CommittedVersion})
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	orderID, err := uuid.Parse(strings.TrimSpace(req.OrderID))
	if err != nil {
		http.Error(w, "invalid order_id", http.StatusBadRequest)
		return
	}

	res, err := h.commands.Handle(r.Context(), command.CancelOrder{
		ID:              orderID,
		Reason:          strings.TrimSpace(req.Reason),
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{OrderID: orderID.String(), Version: res.CommittedVersion})
}

func (h *OrderHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var inv *domain.InvariantViolationError
	switch {
	case errors.As(err, &inv):
		http.Error(w, inv.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, eventstore.ErrConcurrencyConflict):
		http.Error(w, "order was modified concurrently, reload and retry", http.StatusConflict)
	case errors.Is(err, command.ErrNotFound):
		http.Error(w, "order not found", http.StatusNotFound)
	default:
		h.logger.Error("command failed", "err", err, "path", r.URL.Path)
		http.Error(w, "temporary failure, retry later", http.StatusServiceUnavailable)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
