package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"sensorflow/internal/config"
	"sensorflow/internal/constants"
	"sensorflow/internal/logger"
	"sensorflow/internal/publish"
	"sensorflow/internal/source"
	"sensorflow/pkg/bootstrap"
	"sensorflow/pkg/circuitbreaker"
	"sensorflow/pkg/errors"
	"sensorflow/pkg/health"
	"sensorflow/pkg/logging"
	"sensorflow/pkg/metrics"
)

type App struct {
	*bootstrap.Base
	publisher *publish.Publisher
	readings  source.Source
	server    *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("ingest-service")
	}
	return &App{
		Base: bootstrap.NewBase(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.InitTransport(); err != nil {
		return fmt.Errorf("failed to initialize transport: %w", err)
	}

	if err := a.initPublisher(); err != nil {
		return fmt.Errorf("failed to initialize publisher: %w", err)
	}

	if err := a.initSource(); err != nil {
		return fmt.Errorf("failed to initialize reading source: %w", err)
	}

	metrics.RegisterPublisherMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initHTTPServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initPublisher() error {
	pubCfg := a.Config.Publisher
	if pubCfg.ProducerID == "" {
		pubCfg.ProducerID = "ingest-" + uuid.NewString()[:8]
	}

	publisher, err := publish.New(a.Transport, pubCfg, a.Logger)
	if err != nil {
		return err
	}

	if a.Config.CircuitBreaker.Enabled {
		cbCfg := circuitbreaker.DefaultConfig("transport-send")
		if a.Config.CircuitBreaker.MaxRequests > 0 {
			cbCfg.MaxRequests = a.Config.CircuitBreaker.MaxRequests
		}
		if a.Config.CircuitBreaker.Interval > 0 {
			cbCfg.Interval = a.Config.CircuitBreaker.Interval
		}
		if a.Config.CircuitBreaker.Timeout > 0 {
			cbCfg.Timeout = a.Config.CircuitBreaker.Timeout
		}
		publisher = publisher.WithBreaker(circuitbreaker.NewWrapper(cbCfg))
	}

	a.publisher = publisher
	return nil
}

func (a *App) initSource() error {
	readings, err := source.NewSource(a.Config.Source, a.Logger)
	if err != nil {
		return err
	}
	a.readings = readings
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

	topic := a.Config.Broker.Kafka.ReadingsTopic
	if topic == "" {
		topic = constants.DefaultReadingsTopic
	}

	g.Go(func() error {
		return a.publishLoop(gCtx, topic)
	})

	return g.Wait()
}

func (a *App) publishLoop(ctx context.Context, topic string) error {
	loopCtx := logging.WithServiceName(ctx, "ingest-service")
	a.Logger.InfowCtx(loopCtx, "Starting publish loop",
		"topic", topic,
		"source_type", a.Config.Source.Type,
	)

	for {
		payload, err := a.readings.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				a.Logger.InfowCtx(loopCtx, "Stopped publishing", "reason", "context canceled")
				return ctx.Err()
			}
			return fmt.Errorf("reading source failed: %w", err)
		}

		ack, err := a.publisher.Publish(ctx, topic, time.Now(), payload)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Publish failures are surfaced per reading; the stream itself
			// keeps going.
			if errors.IsPublish(err) || errors.IsEncode(err) {
				a.Logger.ErrorwCtx(loopCtx, "Failed to publish reading",
					"error", err,
				)
				continue
			}
			return err
		}

		a.Logger.DebugwCtx(loopCtx, "Reading published",
			"sequence_id", ack.SequenceID,
		)
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "ingest-service")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down ingest service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			srvCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(srvCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.readings != nil {
			if err := a.readings.Close(); err != nil {
				errs = append(errs, fmt.Errorf("reading source close error: %w", err))
			}
		}

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
