package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apiaudit "github.com/kilianp07/fleetdispatch/api/audit"
	"github.com/kilianp07/fleetdispatch/config"
	"github.com/kilianp07/fleetdispatch/core/assistant"
	"github.com/kilianp07/fleetdispatch/core/audit"
	"github.com/kilianp07/fleetdispatch/core/backend"
	"github.com/kilianp07/fleetdispatch/core/dispatch"
	coremetrics "github.com/kilianp07/fleetdispatch/core/metrics"
	coremon "github.com/kilianp07/fleetdispatch/core/monitoring"
	"github.com/kilianp07/fleetdispatch/core/optimizer"
	"github.com/kilianp07/fleetdispatch/infra/logger"
	"github.com/kilianp07/fleetdispatch/infra/metrics"
	"github.com/kilianp07/fleetdispatch/infra/monitoring"
	"github.com/kilianp07/fleetdispatch/infra/mqtt"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

// Service wires the optimizer, the dispatcher and the assistant to their
// adapters.
type Service struct {
	Backends   *backend.Manager
	Optimizer  *optimizer.Optimizer
	Dispatcher *dispatch.Engine
	Assistant  *assistant.Engine
	Audit      *audit.Log

	cfg       *config.Config
	bus       *eventbus.Bus
	sink      coremetrics.MetricsSink
	publisher *mqtt.Publisher
	closers   []io.Closer
	log       logger.Logger
}

// New creates a Service from the configuration. The MQTT publisher is
// only connected when a broker is configured.
func New(cfg *config.Config) (*Service, error) {
	s := &Service{cfg: cfg}
	s.closers = append(s.closers, logger.Configure(logger.Options{
		Level:      cfg.Logging.Level,
		Console:    cfg.Logging.Console,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	}))
	s.log = logger.New("service")
	if err := s.build(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) build() error {
	cfg := s.cfg
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return fmt.Errorf("metrics sink: %w", err)
	}
	s.sink = sink
	s.bus = eventbus.New()

	mgr, err := backend.NewManagerFromConfig(cfg.Backends, logger.New("backend"))
	if err != nil {
		return fmt.Errorf("backends: %w", err)
	}
	mgr.SetMetricsSink(sink)
	mgr.SetEventBus(s.bus)
	s.Backends = mgr

	opt, err := optimizer.New(mgr, cfg.Optimizer, logger.New("optimizer"))
	if err != nil {
		return fmt.Errorf("optimizer: %w", err)
	}
	s.Optimizer = opt

	auditLog, err := audit.NewLogFromConfig(cfg.Audit)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	s.Audit = auditLog
	s.closers = append(s.closers, auditLog)

	disp, err := dispatch.NewEngine(opt, cfg.Dispatch, logger.New("dispatcher"))
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}
	disp.SetMetricsSink(sink)
	disp.SetEventBus(s.bus)
	s.Dispatcher = disp

	asst, err := assistant.NewEngine(opt, auditLog, cfg.Assistant, logger.New("assistant"))
	if err != nil {
		return fmt.Errorf("assistant: %w", err)
	}
	asst.SetMetricsSink(sink)
	asst.SetEventBus(s.bus)
	s.Assistant = asst

	if cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewPublisher(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("mqtt publisher: %w", err)
		}
		s.publisher = pub
		disp.SetPublisher(pub)
	}
	return nil
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	return apiaudit.NewRouter(s.Audit, s.Assistant, s.Backends, apiaudit.Options{
		Token:     s.cfg.HTTP.Token,
		RateLimit: s.cfg.HTTP.RateLimit,
		RateBurst: s.cfg.HTTP.RateBurst,
		Logger:    logger.New("api"),
	})
}

// Run serves the HTTP API, and the metrics endpoint when configured, until
// ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	if addr := s.cfg.Metrics.Addr; addr != "" {
		coremon.Go(func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		})
	}

	srv := &http.Server{
		Addr:         s.cfg.HTTP.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("serving API on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	if s.bus != nil {
		s.bus.Close()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}
