package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/orderflow/libs/events"
	"github.com/md-rashed-zaman/orderflow/libs/metrics"
	otelx "github.com/md-rashed-zaman/orderflow/libs/otel"
	"github.com/md-rashed-zaman/orderflow/services/order-service/internal/domain"
	"github.com/md-rashed-zaman/orderflow/services/order-service/internal/eventstore"
	"github.com/md-rashed-zaman/orderflow/services/order-service/internal/outbox"
)

// TxBeginner opens the transaction that scopes one command's writes.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// EventStore is the slice of the event store the handler needs.
type EventStore interface {
	ReadStream(ctx context.Context, aggregateID uuid.UUID) ([]eventstore.StoredEvent, error)
	Append(ctx context.Context, tx pgx.Tx, aggregateID uuid.UUID, aggregateType string, expectedVersion int64, newEvents []domain.Event) (int64, error)
}

// OutboxStore is the slice of the outbox the handler needs.
type OutboxStore interface {
	Insert(ctx context.Context, tx pgx.Tx, msgs []outbox.Message) error
}

// Handler runs the load-execute-append cycle for order commands. Events and
// their outbox rows are written in one transaction; a stale append conflicts
// and the whole cycle is retried a bounded number of times, which is safe
// because intents are pure functions of loaded state plus command input.
type Handler struct {
	db         TxBeginner
	events     EventStore
	outbox     OutboxStore
	logger     *slog.Logger
	maxRetries int
}

func NewHandler(db TxBeginner, events EventStore, outboxStore OutboxStore, logger *slog.Logger, maxRetries int) *Handler {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Handler{
		db:         db,
		events:     events,
		outbox:     outboxStore,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

func (h *Handler) Handle(ctx context.Context, cmd Command) (Result, error) {
	res, err := h.handle(ctx, cmd)
	metrics.CommandsHandled.WithLabelValues(cmd.Name(), outcome(err)).Inc()
	return res, err
}

func (h *Handler) handle(ctx context.Context, cmd Command) (Result, error) {
	var lastErr error
	for attempt := 0; attempt < h.maxRetries; attempt++ {
		res, err := h.attempt(ctx, cmd)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, eventstore.ErrConcurrencyConflict) {
			return Result{}, err
		}
		// A caller-supplied expected version is that caller's premise; a
		// reload would not make the premise true again, so surface at once.
		if cmd.expectedVersion() != nil {
			return Result{}, err
		}
		lastErr = err
		metrics.CommandRetries.Inc()
		h.logger.Info("concurrency conflict, retrying command",
			"command", cmd.Name(),
			"order_id", cmd.OrderID(),
			"attempt", attempt+1,
		)
	}
	return Result{}, lastErr
}

// attempt runs one full load-execute-append cycle.
func (h *Handler) attempt(ctx context.Context, cmd Command) (Result, error) {
	order, err := h.load(ctx, cmd.OrderID())
	if err != nil {
		return Result{}, err
	}

	if ev := cmd.expectedVersion(); ev != nil && *ev != order.Version() {
		return Result{}, fmt.Errorf("order %s at version %d, caller expected %d: %w",
			cmd.OrderID(), order.Version(), *ev, eventstore.ErrConcurrencyConflict)
	}

	loadedVersion := order.Version()
	if err := h.execute(order, cmd, loadedVersion); err != nil {
		return Result{}, err
	}

	committed, err := h.commit(ctx, order, loadedVersion)
	if err != nil {
		return Result{}, err
	}
	order.ClearUncommitted()
	return Result{CommittedVersion: committed}, nil
}

func (h *Handler) load(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	stream, err := h.events.ReadStream(ctx, orderID)
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}
	history := make([]domain.Event, 0, len(stream))
	for _, stored := range stream {
		evt, err := eventstore.Decode(stored)
		if err != nil {
			return nil, err
		}
		history = append(history, evt)
	}
	return domain.LoadOrder(orderID, history)
}

func (h *Handler) execute(order *domain.Order, cmd Command, loadedVersion int64) error {
	if _, creating := cmd.(PlaceOrder); !creating && loadedVersion == 0 {
		return fmt.Errorf("%s: %w", cmd.OrderID(), ErrNotFound)
	}
	switch c := cmd.(type) {
	case PlaceOrder:
		return order.Place(c.Items)
	case ConfirmOrder:
		return order.Confirm()
	case ShipOrder:
		return order.Ship(c.Carrier, c.TrackingRef)
	case CancelOrder:
		return order.Cancel(c.Reason)
	default:
		return fmt.Errorf("unknown command %T", cmd)
	}
}

// commitTimeout bounds one append transaction so lock contention on a hot
// stream cannot hold the request open indefinitely. A timed-out commit is a
// transient PersistenceError; nothing was written.
const commitTimeout = 5 * time.Second

// commit appends the new events and their outbox rows in one transaction.
// Nothing is externally observable before the commit.
func (h *Handler) commit(ctx context.Context, order *domain.Order, expectedVersion int64) (int64, error) {
	pending := order.Uncommitted()
	if len(pending) == 0 {
		return expectedVersion, nil
	}

	msgs, err := h.outboxMessages(ctx, pending)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, commitTimeout)
	defer cancel()

	tx, err := h.db.Begin(ctx)
	if err != nil {
		return 0, &PersistenceError{Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	committed, err := h.events.Append(ctx, tx, order.ID(), events.AggregateOrder, expectedVersion, pending)
	if err != nil {
		if errors.Is(err, eventstore.ErrConcurrencyConflict) {
			return 0, err
		}
		return 0, &PersistenceError{Err: err}
	}
	if err := h.outbox.Insert(ctx, tx, msgs); err != nil {
		return 0, &PersistenceError{Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, &PersistenceError{Err: err}
	}
	return committed, nil
}

func (h *Handler) outboxMessages(ctx context.Context, pending []domain.Event) ([]outbox.Message, error) {
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	msgs := make([]outbox.Message, 0, len(pending))
	for _, evt := range pending {
		payload, err := events.EncodePayload(evt.Payload)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, outbox.Message{
			EventID:       evt.ID,
			AggregateType: events.AggregateOrder,
			AggregateID:   evt.AggregateID,
			EventType:     string(evt.Type),
			Payload:       payload,
			Version:       evt.Version,
			Traceparent:   traceparent,
			Tracestate:    tracestate,
		})
	}
	return msgs, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvariantViolation):
		return "invariant_violation"
	case errors.Is(err, eventstore.ErrConcurrencyConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "persistence_error"
	}
}
