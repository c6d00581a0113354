package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/orderflow/libs/events"
	"github.com/md-rashed-zaman/orderflow/libs/kafkax"
	"github.com/md-rashed-zaman/orderflow/libs/metrics"
	"github.com/md-rashed-zaman/orderflow/services/order-projector/internal/projection"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Applier folds one published event into the read model.
type Applier interface {
	Apply(ctx context.Context, evt projection.Event) error
}

// Consumer reads published order events from Kafka and hands them to the
// projector. Partitions are keyed by aggregate id upstream, so one order's
// events arrive in version order; dedup across redeliveries is the
// projector's version watermark, not ours.
type Consumer struct {
	reader    *kafka.Reader
	logger    *slog.Logger
	projector Applier
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func New(logger *slog.Logger, projector Applier, cfg Config) *Consumer {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, logger: logger, projector: projector}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}

		ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
		ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)

		evt, ok := c.decode(msg)
		if !ok {
			span.End()
			continue
		}

		if err := c.projector.Apply(ctxSpan, evt); err != nil {
			metrics.ProjectionFailures.Inc()
			c.logger.Error("projection apply failed, read model is stale",
				"err", err,
				"event_id", evt.EventID,
				"order_id", evt.OrderID,
				"version", evt.Version,
			)
			span.RecordError(err)
		}
		span.End()
	}
}

func (c *Consumer) decode(msg kafka.Message) (projection.Event, bool) {
	meta := kafkax.ExtractEventMeta(msg)

	eventID, err := uuid.Parse(meta.EventID)
	if err != nil {
		c.logger.Warn("message without a valid event_id header dropped", "event_id", meta.EventID)
		return projection.Event{}, false
	}
	orderID, err := uuid.Parse(meta.AggregateID)
	if err != nil {
		c.logger.Warn("message without a valid aggregate_id dropped", "event_id", meta.EventID)
		return projection.Event{}, false
	}
	if meta.Version <= 0 {
		c.logger.Warn("message without a version header dropped", "event_id", meta.EventID)
		return projection.Event{}, false
	}

	return projection.Event{
		EventID: eventID,
		OrderID: orderID,
		Type:    events.Type(meta.EventType),
		Version: meta.Version,
		Payload: msg.Value,
	}, true
}
