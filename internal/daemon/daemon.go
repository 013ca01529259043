package daemon

import (
	"context"
	"log/slog"
	"time"

	"autosync/internal/scheduler"
)

const (
	// DefaultTick is how often due jobs are looked for
	DefaultTick = time.Second
	// DefaultCheckInterval is how often the config file is polled
	DefaultCheckInterval = time.Minute
	// heartbeatEvery is measured in ticks
	heartbeatEvery = 60
)

// Daemon is the single loop that runs due jobs and reloads the configuration.
// Every scheduler call happens on the goroutine running Run.
type Daemon struct {
	Driver    *Driver
	Scheduler *scheduler.Scheduler
	// Changes delivers config file notifications; nil disables them
	Changes       <-chan struct{}
	Tick          time.Duration
	CheckInterval time.Duration
	Logger        *slog.Logger
}

// Run loops until ctx is cancelled
func (d *Daemon) Run(ctx context.Context) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tickEvery := d.Tick
	if tickEvery <= 0 {
		tickEvery = DefaultTick
	}
	checkEvery := d.CheckInterval
	if checkEvery <= 0 {
		checkEvery = DefaultCheckInterval
	}

	tick := time.NewTicker(tickEvery)
	defer tick.Stop()
	check := time.NewTicker(checkEvery)
	defer check.Stop()

	logger.Info("daemon started", "jobs", d.Scheduler.Len(), "check_interval", checkEvery)

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping")
			return nil

		case <-tick.C:
			d.Scheduler.RunPending(ctx)
			ticks++
			if ticks%heartbeatEvery == 0 {
				logger.Debug("heartbeat", "jobs", d.Scheduler.Len())
			}

		case <-check.C:
			d.Driver.OnTick(ctx)

		case <-d.Changes:
			d.Driver.OnTick(ctx)
		}
	}
}
