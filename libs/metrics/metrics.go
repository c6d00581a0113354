package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_commands_handled_total",
		Help: "Total commands handled, labelled by command type and outcome.",
	}, []string{"command", "outcome"})

	CommandRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_command_conflict_retries_total",
		Help: "Total command retries triggered by optimistic concurrency conflicts.",
	})

	OutboxPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_outbox_published_total",
		Help: "Total outbox messages published successfully.",
	})

	OutboxPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_outbox_publish_failures_total",
		Help: "Total failed outbox publish attempts.",
	})

	OutboxExhausted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orderflow_outbox_exhausted_rows",
		Help: "Outbox rows that hit the retry ceiling and need operator attention.",
	})

	OutboxLagSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orderflow_outbox_lag_seconds",
		Help: "Age of the oldest unprocessed outbox row.",
	})

	ProjectionApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_projection_events_applied_total",
		Help: "Total events applied to read models, labelled by event type.",
	}, []string{"event_type"})

	ProjectionSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_projection_events_skipped_total",
		Help: "Total redelivered events skipped by the version watermark.",
	})

	ProjectionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_projection_apply_failures_total",
		Help: "Total events a projector failed to apply.",
	})
)
