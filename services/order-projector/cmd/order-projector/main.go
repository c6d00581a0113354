package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/orderflow/libs/config"
	"github.com/md-rashed-zaman/orderflow/libs/db"
	"github.com/md-rashed-zaman/orderflow/libs/httpx"
	"github.com/md-rashed-zaman/orderflow/libs/kafkax"
	otelx "github.com/md-rashed-zaman/orderflow/libs/otel"
	"github.com/md-rashed-zaman/orderflow/libs/runtime"
	"github.com/md-rashed-zaman/orderflow/services/order-projector/internal/consumer"
	"github.com/md-rashed-zaman/orderflow/services/order-projector/internal/projection"
	"github.com/md-rashed-zaman/orderflow/services/order-projector/internal/query"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "order-projector")
	port, err := config.Port("PORT", "8081")
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

	summaries := projection.NewPostgresSummaryStore(pool)
	projector := projection.NewProjector(summaries, logger)

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	if len(kafkax.SplitBrokers(kafkaBrokers)) == 0 {
		logger.Warn("projection consumer disabled (no kafka brokers configured)")
	} else {
		c := consumer.New(logger, projector, consumer.Config{
			Brokers: kafkaBrokers,
			GroupID: config.String("KAFKA_GROUP_ID", "order-projector"),
			Topic:   config.String("ORDER_EVENTS_TOPIC", "order.events"),
		})
		go c.Run(ctx)
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)},
	)
	mux.Handle("/metrics", promhttp.Handler())

	h := query.NewHandler(query.NewStore(pool), logger)
	mux.HandleFunc("/api/v1/orders", h.ListOrders)
	mux.HandleFunc("/api/v1/orders/summary", h.GetOrder)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 15*time.Second)),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: splitList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: splitList(config.String("CORS_ALLOWED_METHODS", "GET,OPTIONS")),
			AllowedHeaders: splitList(config.String("CORS_ALLOWED_HEADERS", "Content-Type,X-Request-Id")),
			MaxAge:         config.Duration("CORS_MAX_AGE", 10*time.Minute),
		}),
	)
	handler = otelhttp.NewHandler(handler, "order-projector")
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

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
