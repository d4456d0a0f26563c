package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"sensorflow/internal/config"
	"sensorflow/internal/constants"
	"sensorflow/internal/logger"
	"sensorflow/internal/subscribe"
	"sensorflow/internal/trend"
	"sensorflow/pkg/bootstrap"
	"sensorflow/pkg/health"
	"sensorflow/pkg/logging"
	"sensorflow/pkg/metrics"
	"sensorflow/pkg/models"
)

type App struct {
	*bootstrap.Base
	aggregator *trend.Aggregator
	subscriber *subscribe.Subscriber
	server     *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("trend-service")
	}
	return &App{
		Base: bootstrap.NewBase(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.InitTransport(); err != nil {
		return fmt.Errorf("failed to initialize transport: %w", err)
	}

	aggregator, err := trend.NewAggregator(a.Config.Window)
	if err != nil {
		return fmt.Errorf("failed to create aggregator: %w", err)
	}
	a.aggregator = aggregator

	if err := a.initSubscriber(); err != nil {
		return fmt.Errorf("failed to initialize subscriber: %w", err)
	}

	metrics.RegisterSubscriberMetrics()
	metrics.RegisterTrendMetrics()

	if err := a.initHTTPServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initSubscriber() error {
	topic := a.Config.Broker.Kafka.ReadingsTopic
	if topic == "" {
		topic = constants.DefaultReadingsTopic
	}

	subscriber, err := subscribe.New(a.Transport, topic, a.handleEnvelope, a.Config.Subscriber, a.Logger)
	if err != nil {
		return err
	}

	if dlqTopic := a.Config.Broker.Kafka.DLQTopic; dlqTopic != "" {
		subscriber = subscriber.WithDeadLetterSink(
			subscribe.NewTopicDeadLetterSink(a.Transport, dlqTopic, a.Logger),
		)
	}

	a.subscriber = subscriber
	return nil
}

func (a *App) handleEnvelope(ctx context.Context, envelope models.Envelope) error {
	a.aggregator.Ingest(envelope)

	a.Logger.DebugwCtx(ctx, "Reading ingested",
		"sample_count", a.aggregator.SampleCount(),
	)
	return nil
}

func (a *App) initHTTPServer() error {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	if a.Config.Broker.Type == "kafka" {
		healthRegistry.Register(health.NewKafkaChecker(a.Config.Broker.Kafka.Brokers))
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, `{"status":"%s","timestamp":"%s"}`, h.Status, h.Timestamp.Format(time.RFC3339))
	})

	mux.HandleFunc("/trend", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(a.aggregator.CurrentTrend()); err != nil {
			a.Logger.Errorw("Failed to encode trend response", "error", err)
		}
	})

	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: mux,
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(func() error {
			a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
			if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		runCtx := logging.WithServiceName(gCtx, "trend-service")
		a.Logger.InfowCtx(runCtx, "Starting subscriber")
		return a.subscriber.Run(runCtx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "trend-service")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down trend service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			srvCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(srvCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
