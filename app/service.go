// Package app wires configuration, persistence, metrics and the fleet into
// a runnable dispatch service.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/verticore/liftd/config"
	"github.com/verticore/liftd/core/dispatch"
	"github.com/verticore/liftd/core/elevator"
	coremetrics "github.com/verticore/liftd/core/metrics"
	corepersistence "github.com/verticore/liftd/core/persistence"
	"github.com/verticore/liftd/infra/logger"
	"github.com/verticore/liftd/infra/metrics"
	"github.com/verticore/liftd/infra/persistence"
	"github.com/verticore/liftd/internal/eventbus"
)

// Service orchestrates the fleet and the dispatcher.
type Service struct {
	Dispatcher *dispatch.Dispatcher
	Units      []*elevator.Unit

	gateway     corepersistence.Gateway
	bus         *eventbus.Bus
	log         logger.Logger
	influx      *metrics.InfluxSink
	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	gateway, err := persistence.New(cfg.Persistence)
	if err != nil {
		return nil, fmt.Errorf("persistence gateway: %w", err)
	}

	var sinks []coremetrics.MetricsSink
	var influx *metrics.InfluxSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken,
			cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
		if is, ok := sink.(*metrics.InfluxSink); ok {
			influx = is
		}
		sinks = append(sinks, sink)
	}
	var sink coremetrics.MetricsSink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New()
	drive := &elevator.SleepDrive{
		Transit: seconds(cfg.Fleet.FloorTransitSeconds),
		Door:    seconds(cfg.Fleet.DoorSeconds),
	}
	units := make([]*elevator.Unit, 0, cfg.Fleet.NumElevators)
	for id := 1; id <= cfg.Fleet.NumElevators; id++ {
		units = append(units, elevator.NewUnit(id, cfg.Fleet.NumFloors, drive, gateway, bus, logger.New(fmt.Sprintf("elevator-%d", id))))
	}

	dispatcher, err := dispatch.New(units, gateway, cfg.DispatcherConfig(), sink, bus, logger.New("dispatcher"))
	if err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}

	return &Service{
		Dispatcher:  dispatcher,
		Units:       units,
		gateway:     gateway,
		bus:         bus,
		log:         logg,
		influx:      influx,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Run starts the background surfaces and blocks until the context is
// cancelled. The dispatcher itself is driven by Assign calls.
func (s *Service) Run(ctx context.Context) error {
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	events := s.bus.Subscribe()
	defer s.bus.Unsubscribe(events)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return nil
			}
			s.log.Debugw("event", map[string]any{"event": fmt.Sprintf("%+v", e)})
		case <-ctx.Done():
			return nil
		}
	}
}

// Close waits for in-flight rides and releases resources.
func (s *Service) Close() error {
	s.Dispatcher.Wait()
	s.bus.Close()
	if s.influx != nil {
		s.influx.Close()
	}
	return s.gateway.Close()
}
