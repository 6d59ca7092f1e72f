// Package simulator generates synthetic call traffic against an in-process
// fleet and summarizes how the dispatcher behaved.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/verticore/liftd/core/dispatch"
	"github.com/verticore/liftd/core/elevator"
	"github.com/verticore/liftd/core/model"
	"github.com/verticore/liftd/core/persistence"
	"github.com/verticore/liftd/infra/logger"
	"github.com/verticore/liftd/internal/eventbus"
)

// Config parameterizes a simulation run.
type Config struct {
	NumFloors    int
	NumElevators int
	Calls        int
	Concurrency  int
	Seed         int64
	// FloorTransit and Door override the ride timing. They default to a
	// millisecond so runs finish quickly.
	FloorTransit time.Duration
	Door         time.Duration
}

// SetDefaults applies the defaults used when fields are zero.
func (c *Config) SetDefaults() {
	if c.NumFloors == 0 {
		c.NumFloors = 10
	}
	if c.NumElevators == 0 {
		c.NumElevators = 5
	}
	if c.Calls == 0 {
		c.Calls = 100
	}
	if c.Concurrency == 0 {
		c.Concurrency = 8
	}
	if c.FloorTransit == 0 {
		c.FloorTransit = time.Millisecond
	}
	if c.Door == 0 {
		c.Door = time.Millisecond
	}
}

// Report summarizes one simulation run.
type Report struct {
	Calls     int
	Assigned  int
	Rejected  int
	Completed int
	Failed    int

	MeanETA   float64
	StdDevETA float64
	P95ETA    float64

	Elapsed time.Duration
}

// String renders the report for the CLI.
func (r Report) String() string {
	return fmt.Sprintf(
		"calls=%d assigned=%d rejected=%d completed=%d failed=%d eta(mean=%.1fs stddev=%.1fs p95=%.1fs) elapsed=%s",
		r.Calls, r.Assigned, r.Rejected, r.Completed, r.Failed,
		r.MeanETA, r.StdDevETA, r.P95ETA, r.Elapsed.Round(time.Millisecond))
}

// Run drives cfg.Calls random calls through a fresh fleet and waits for all
// accepted rides to finish.
func Run(ctx context.Context, cfg Config, log logger.Logger) (Report, error) {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NopLogger{}
	}

	gateway := persistence.NewMemoryGateway()
	bus := eventbus.New()
	defer bus.Close()

	drive := &elevator.SleepDrive{Transit: cfg.FloorTransit, Door: cfg.Door}
	units := make([]*elevator.Unit, 0, cfg.NumElevators)
	for id := 1; id <= cfg.NumElevators; id++ {
		units = append(units, elevator.NewUnit(id, cfg.NumFloors, drive, gateway, bus, logger.NopLogger{}))
	}
	dispatcher, err := dispatch.New(units, gateway, dispatch.Config{
		NumFloors:    cfg.NumFloors,
		FloorTransit: cfg.FloorTransit,
		DoorTime:     cfg.Door,
	}, nil, bus, log)
	if err != nil {
		return Report{}, err
	}

	// Generate the workload up-front so a given seed always produces the
	// same sequence regardless of worker interleaving.
	rng := rand.New(rand.NewSource(cfg.Seed))
	calls := make([]model.CallRequest, cfg.Calls)
	for i := range calls {
		from := rng.Intn(cfg.NumFloors) + 1
		to := rng.Intn(cfg.NumFloors) + 1
		for to == from {
			to = rng.Intn(cfg.NumFloors) + 1
		}
		calls[i] = model.CallRequest{
			FromFloor: from,
			ToFloor:   to,
			CallerID:  fmt.Sprintf("sim-%d", i),
		}
	}

	var (
		mu      sync.Mutex
		etas    []float64
		taskIDs []string
		report  Report
	)
	report.Calls = cfg.Calls

	start := time.Now()
	work := make(chan model.CallRequest)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range work {
				asg, err := dispatcher.Assign(ctx, req)
				mu.Lock()
				switch {
				case err == nil:
					report.Assigned++
					etas = append(etas, asg.EstimatedArrivalTime)
					taskIDs = append(taskIDs, asg.TaskID)
				case errors.Is(err, dispatch.ErrNoAvailableUnit):
					report.Rejected++
				default:
					report.Rejected++
					log.Warnf("assign %d->%d: %v", req.FromFloor, req.ToFloor, err)
				}
				mu.Unlock()
			}
		}()
	}
	for _, req := range calls {
		select {
		case work <- req:
		case <-ctx.Done():
			close(work)
			wg.Wait()
			dispatcher.Wait()
			return report, ctx.Err()
		}
	}
	close(work)
	wg.Wait()
	dispatcher.Wait()
	report.Elapsed = time.Since(start)

	for _, id := range taskIDs {
		switch dispatcher.GetTaskStatus(id).Status {
		case model.TaskCompleted:
			report.Completed++
		case model.TaskFailed:
			report.Failed++
		}
	}

	if len(etas) > 0 {
		sort.Float64s(etas)
		report.MeanETA = stat.Mean(etas, nil)
		if len(etas) > 1 {
			report.StdDevETA = stat.StdDev(etas, nil)
		}
		report.P95ETA = stat.Quantile(0.95, stat.Empirical, etas, nil)
	}
	return report, nil
}
