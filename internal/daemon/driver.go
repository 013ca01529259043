// Package daemon keeps the job schedule in line with the configuration file
// and runs the cooperative main loop.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"autosync/internal/config"
	"autosync/internal/genai"
	"autosync/internal/metrics"
	"autosync/internal/model"
	"autosync/internal/scheduler"
)

// Bootstrapper prepares one project and returns its recurring tasks
type Bootstrapper interface {
	Bootstrap(ctx context.Context, p model.ProjectConfig, g model.GlobalConfig) ([]scheduler.Task, error)
}

// Reconfigurer receives the generation settings after every successful load
type Reconfigurer interface {
	Reconfigure(cfg genai.Config)
}

// Driver reloads the configuration when its modification time changes and
// rebuilds the schedule from it. It must only be used from the loop goroutine.
type Driver struct {
	path         string
	fingerprint  time.Time
	cfg          *model.GlobalConfig
	sched        *scheduler.Scheduler
	bootstrapper Bootstrapper
	generator    Reconfigurer
	logger       *slog.Logger
}

// NewDriver creates a driver for the config file at path; generator may be nil
func NewDriver(path string, sched *scheduler.Scheduler, b Bootstrapper, generator Reconfigurer, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		path:         path,
		sched:        sched,
		bootstrapper: b,
		generator:    generator,
		logger:       logger,
	}
}

// Start performs the initial load. Unlike a reload, an invalid file or a
// project without a resolvable owner is an error here.
func (d *Driver) Start(ctx context.Context) error {
	mtime, err := config.ModTime(d.path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", d.path, err)
	}
	cfg, err := config.Load(d.path)
	if err != nil {
		return err
	}
	if err := config.CheckCredentials(cfg); err != nil {
		return err
	}

	d.fingerprint = mtime
	d.apply(ctx, cfg)
	metrics.Reconciliation(nil)
	return nil
}

// OnTick reloads the configuration if the file changed since the last look
// and reports whether the schedule was rebuilt. A failed reload keeps the
// previous configuration and jobs; it is retried only after the next change.
func (d *Driver) OnTick(ctx context.Context) bool {
	mtime, err := config.ModTime(d.path)
	if err != nil {
		d.logger.Warn("cannot stat config file", "path", d.path, "error", err)
		return false
	}
	if mtime.Equal(d.fingerprint) {
		return false
	}
	d.fingerprint = mtime

	d.logger.Info("config file changed, reloading", "path", d.path)
	cfg, err := config.Load(d.path)
	if err != nil {
		d.logger.Error("failed to reload config, keeping previous schedule", "error", err, "jobs", d.sched.Len())
		metrics.Reconciliation(err)
		return false
	}

	d.apply(ctx, cfg)
	metrics.Reconciliation(nil)
	return true
}

// Config returns the configuration the current schedule was built from
func (d *Driver) Config() *model.GlobalConfig {
	return d.cfg
}

func (d *Driver) apply(ctx context.Context, cfg *model.GlobalConfig) {
	d.cfg = cfg
	if d.generator != nil {
		d.generator.Reconfigure(genai.Config{
			APIKey:  cfg.GenAIKey,
			Model:   cfg.GenAIModel,
			BaseURL: cfg.GenAIBaseURL,
		})
	}

	d.sched.CancelAll()

	failed := 0
	for _, p := range cfg.Projects {
		tasks, err := d.bootstrapper.Bootstrap(ctx, p, *cfg)
		if err != nil {
			failed++
			d.logger.Error("failed to bootstrap project", "project", p.RepoName, "folder", p.FolderPath, "error", err)
			continue
		}
		for _, t := range tasks {
			d.sched.Add(t)
		}
	}

	metrics.SetScheduledJobs(d.sched.Len())
	d.logger.Info("schedule rebuilt", "projects", len(cfg.Projects), "failed", failed, "jobs", d.sched.Len())
}
