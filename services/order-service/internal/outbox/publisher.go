package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/orderflow/libs/metrics"
)

// PublishFunc ships one claimed message to the external transport. The
// publisher only needs this capability, not the transport behind it.
type PublishFunc func(ctx context.Context, msg Message) error

// Publisher is the background loop that drains the outbox. Rows that fail
// MaxRetries times stop being retried and are surfaced through the exhausted
// gauge and the error log instead of being silently dropped.
type Publisher struct {
	store   Store
	publish PublishFunc
	logger  *slog.Logger
	cfg     PublisherConfig
}

type PublisherConfig struct {
	PollEvery      time.Duration
	BatchSize      int
	MaxRetries     int
	PublishTimeout time.Duration
	ClaimLease     time.Duration
}

func NewPublisher(store Store, publish PublishFunc, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = 30 * time.Second
	}
	// The lease must outlive a worst-case batch, or a second publisher
	// instance re-claims rows that are still in flight here.
	if minLease := time.Duration(cfg.BatchSize)*cfg.PublishTimeout + cfg.PollEvery; cfg.ClaimLease < minLease {
		cfg.ClaimLease = minLease
	}
	return &Publisher{store: store, publish: publish, logger: logger, cfg: cfg}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.drain(ctx); err != nil {
				p.logger.Error("outbox drain failed", "err", err)
			}
			p.observe(ctx)
		}
	}
}

// drain claims one batch and attempts publication in creation order. A failed
// row is marked and skipped so one stuck message cannot stall the rest of the
// batch.
func (p *Publisher) drain(ctx context.Context) error {
	msgs, err := p.store.ClaimPending(ctx, p.cfg.BatchSize, p.cfg.MaxRetries, p.cfg.ClaimLease)
	if err != nil {
		return err
	}

	for _, msg := range msgs {
		pubCtx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
		err := p.publish(pubCtx, msg)
		cancel()

		if err != nil {
			metrics.OutboxPublishFailures.Inc()
			attempts := msg.RetryCount + 1
			if markErr := p.store.MarkFailed(ctx, msg.ID, err.Error()); markErr != nil {
				p.logger.Error("outbox mark failed errored", "err", markErr, "outbox_id", msg.ID)
			}
			if attempts >= p.cfg.MaxRetries {
				p.logger.Error("outbox message exhausted retries, needs operator attention",
					"outbox_id", msg.ID,
					"event_id", msg.EventID,
					"event_type", msg.EventType,
					"attempts", attempts,
					"err", err,
				)
			} else {
				p.logger.Warn("outbox publish failed, will retry",
					"outbox_id", msg.ID,
					"event_type", msg.EventType,
					"attempts", attempts,
					"err", err,
				)
			}
			continue
		}

		if err := p.store.MarkProcessed(ctx, msg.ID); err != nil {
			p.logger.Error("outbox mark processed errored", "err", err, "outbox_id", msg.ID)
			continue
		}
		metrics.OutboxPublished.Inc()
	}
	return nil
}

func (p *Publisher) observe(ctx context.Context) {
	if n, err := p.store.CountExhausted(ctx, p.cfg.MaxRetries); err == nil {
		metrics.OutboxExhausted.Set(float64(n))
	}
	if lag, err := p.store.Lag(ctx); err == nil {
		metrics.OutboxLagSeconds.Set(lag.Seconds())
	}
}
