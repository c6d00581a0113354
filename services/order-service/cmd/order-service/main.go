package main

import (
	"context"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/orderflow/libs/config"
	"github.com/md-rashed-zaman/orderflow/libs/db"
	"github.com/md-rashed-zaman/orderflow/libs/httpx"
	"github.com/md-rashed-zaman/orderflow/libs/kafkax"
	otelx "github.com/md-rashed-zaman/orderflow/libs/otel"
	"github.com/md-rashed-zaman/orderflow/libs/runtime"
	"github.com/md-rashed-zaman/orderflow/services/order-service/internal/command"
	"github.com/md-rashed-zaman/orderflow/services/order-service/internal/eventstore"
	"github.com/md-rashed-zaman/orderflow/services/order-service/internal/handlers"
	"github.com/md-rashed-zaman/orderflow/services/order-service/internal/outbox"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "order-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	events := eventstore.NewStore(pool)
	outboxStore := outbox.NewPostgresStore(pool)
	commands := command.NewHandler(pool, events, outboxStore, logger, config.Int("COMMAND_MAX_RETRIES", 3))

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	topic := config.String("ORDER_EVENTS_TOPIC", "order.events")
	brokers := kafkax.SplitBrokers(kafkaBrokers)
	if len(brokers) == 0 {
		logger.Warn("outbox publisher disabled (no kafka brokers configured)")
	} else {
		writer := &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		}
		defer writer.Close()

		publish := func(pubCtx context.Context, msg outbox.Message) error {
			msgCtx := otelx.ContextWithTraceContext(pubCtx, msg.Traceparent, msg.Tracestate)
			kmsg := kafka.Message{
				Key:   []byte(msg.AggregateID.String()),
				Value: msg.Payload,
				Headers: kafkax.EventHeaders(kafkax.EventMeta{
					EventID:       msg.EventID.String(),
					EventType:     msg.EventType,
					AggregateType: msg.AggregateType,
					AggregateID:   msg.AggregateID.String(),
					Version:       msg.Version,
				}),
			}
			kmsg.Headers = kafkax.InjectTraceHeaders(msgCtx, kmsg.Headers)
			return writer.WriteMessages(pubCtx, kmsg)
		}

		publisher := outbox.NewPublisher(outboxStore, publish, logger, outbox.PublisherConfig{
			PollEvery:      config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize:      config.Int("OUTBOX_BATCH_SIZE", 100),
			MaxRetries:     config.Int("OUTBOX_MAX_RETRIES", 5),
			PublishTimeout: config.Duration("OUTBOX_PUBLISH_TIMEOUT", 5*time.Second),
			ClaimLease:     config.Duration("OUTBOX_CLAIM_LEASE", 30*time.Second),
		})
		go publisher.Run(ctx)
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)},
	)
	mux.Handle("/metrics", promhttp.Handler())

	h := handlers.NewOrderHandler(commands, logger)
	mux.HandleFunc("/api/v1/orders/place", h.Place)
	mux.HandleFunc("/api/v1/orders/confirm", h.Confirm)
	mux.HandleFunc("/api/v1/orders/ship", h.Ship)
	mux.HandleFunc("/api/v1/orders/cancel", h.Cancel)

	middleware := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1 << 20),
	}
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		limiter := httpx.NewRedisRateLimiter(rdb,
			config.Int("RATE_LIMIT_PER_MINUTE", 120), time.Minute, "orders")
		middleware = append(middleware, limiter.Middleware(logger, true))
	}

	handler := httpx.Chain(mux, middleware...)
	handler = otelhttp.NewHandler(handler, "order-service")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
