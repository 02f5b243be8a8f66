// Package app wires the set-point backend together and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/vjranagit/thermotrack/internal/config"
	"github.com/vjranagit/thermotrack/internal/metrics"
	"github.com/vjranagit/thermotrack/pkg/api"
	"github.com/vjranagit/thermotrack/pkg/controller"
	"github.com/vjranagit/thermotrack/pkg/playback"
	"github.com/vjranagit/thermotrack/pkg/publish"
	"github.com/vjranagit/thermotrack/pkg/sensor"
	"github.com/vjranagit/thermotrack/pkg/series"
	"github.com/vjranagit/thermotrack/pkg/storage"
)

const shutdownTimeout = 30 * time.Second

// App owns every long-lived component of the server
type App struct {
	cfg *config.Config
	log *slog.Logger

	storage   storage.Storage
	series    *series.Store
	clock     *playback.Clock
	source    sensor.Source
	mqtt      *sensor.MQTTSource
	poller    *sensor.Poller
	ctrl      *controller.Controller
	metrics   *metrics.Metrics
	publisher *publish.Publisher
	server    *api.Server

	unsubscribe []func()
}

// New opens storage, loads the saved series and builds every component.
// Nothing runs until Run is called.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	a := &App{
		cfg:     cfg,
		log:     log,
		series:  series.NewStore(),
		metrics: metrics.New(),
	}

	st, err := storage.NewStorage(cfg.ToStorageConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.storage = st

	if err := a.loadSeries(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if err := a.openSensor(); err != nil {
		a.Close()
		return nil, err
	}

	a.clock = playback.New(cfg.ToPlaybackOptions())

	opts := []controller.Option{
		controller.WithArchiver(a.storage),
		controller.WithLogger(log.With("component", "controller")),
	}
	if a.poller != nil {
		a.ctrl = controller.New(a.series, a.clock, a.poller, opts...)
	} else {
		a.ctrl = controller.New(a.series, a.clock, nil, opts...)
	}
	a.unsubscribe = append(a.unsubscribe, a.ctrl.Subscribe(a.metrics.ObserveUpdate))

	if len(cfg.Kafka.Brokers) > 0 {
		w := publish.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.publisher = publish.New(w, log.With("component", "kafka"))
		a.unsubscribe = append(a.unsubscribe, a.ctrl.Subscribe(a.publisher.Publish))
		log.Info("publishing updates to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	deps := api.Deps{
		Storage:        a.storage,
		Series:         a.series,
		Clock:          a.clock,
		Controller:     a.ctrl,
		Sensor:         a.source,
		Metrics:        a.metrics,
		Logger:         log.With("component", "api"),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Timeout:        cfg.Server.Timeout,
	}
	if cfg.Server.AccessLog {
		deps.AccessLog = os.Stdout
	}
	a.server = api.NewServer(cfg.Server.ListenAddr, deps)

	return a, nil
}

// loadSeries seeds empty storage when configured and copies the saved
// readings into the session store
func (a *App) loadSeries(ctx context.Context) error {
	if a.cfg.Storage.Seed {
		seeded, err := storage.Seed(ctx, a.storage, storage.DefaultSeed)
		if err != nil {
			return err
		}
		if seeded {
			a.log.Info("seeded empty storage", "points", len(storage.DefaultSeed))
		}
	}

	readings, err := a.storage.ListReadings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load readings: %w", err)
	}
	for _, r := range readings {
		a.series.Put(r)
	}
	a.log.Info("series loaded", "readings", len(readings))
	return nil
}

func (a *App) openSensor() error {
	cfg := a.cfg.Sensor
	log := a.log.With("component", "sensor")

	switch cfg.Kind {
	case config.SensorNone:
		log.Info("no temperature sensor configured")
		return nil
	case config.SensorHTTP:
		a.source = sensor.NewHTTPSource(cfg.URL, cfg.Timeout, cfg.RateLimit)
	case config.SensorMQTT:
		m, err := sensor.NewMQTTSource(cfg.MQTTBroker, cfg.MQTTTopic, cfg.Timeout, log)
		if err != nil {
			return err
		}
		a.mqtt = m
		a.source = m
	default:
		a.source = sensor.NewSimulated()
	}

	a.poller = sensor.NewPoller(a.source, cfg.PollInterval, cfg.Timeout, log, a.metrics)
	log.Info("temperature sensor configured", "kind", cfg.Kind, "interval", cfg.PollInterval)
	return nil
}

// Run starts polling, the controller and the API server, and blocks until
// ctx is cancelled or the server fails
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.ctrl.Start()

	pollDone := make(chan struct{})
	if a.poller != nil {
		go func() {
			defer close(pollDone)
			a.poller.Run(ctx)
		}()
	} else {
		close(pollDone)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received, stopping server")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := a.server.Stop(shutdownCtx); err != nil {
		a.log.Error("server shutdown error", "err", err)
	}

	cancel()
	<-pollDone

	a.log.Info("server stopped")
	return runErr
}

// Close releases every component; it is safe to call after a failed New
func (a *App) Close() error {
	for _, unsubscribe := range a.unsubscribe {
		unsubscribe()
	}
	a.unsubscribe = nil

	if a.ctrl != nil {
		a.ctrl.Close()
	}
	if a.clock != nil {
		a.clock.Close()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Error("kafka writer close failed", "err", err)
		}
	}
	if a.mqtt != nil {
		a.mqtt.Close()
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}
	return nil
}
