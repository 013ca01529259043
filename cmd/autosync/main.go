package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"autosync/internal/cli"
	"autosync/internal/command"
	"autosync/internal/config"
	"autosync/internal/daemon"
	"autosync/internal/deploy"
	"autosync/internal/genai"
	"autosync/internal/logging"
	"autosync/internal/metrics"
	"autosync/internal/scheduler"
	"autosync/internal/sync"
	"autosync/internal/watcher"
)

// These variables are set during compilation
var (
	Version   = "dev"
	BuildDate = time.Now().Format(time.RFC3339)
)

type options struct {
	configPath    string
	logFile       string
	logDir        string
	logLevel      string
	checkInterval int
	metricsAddr   string
	init          bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "autosync",
		Short: "Keep local folders in sync with Git remotes and redeploy compose stacks",
		Long: `autosync periodically commits and pushes local changes, pulls remote
commits and redeploys Docker Compose stacks when new commits arrive. The
configuration file is watched and the schedule is rebuilt when it changes.`,
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildDate),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.init {
				return runInit(opts)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "config.json", "path to the JSON or YAML configuration file")
	f.StringVar(&opts.logFile, "log", "", "append JSON logs to this file")
	f.StringVar(&opts.logDir, "logdir", "logs", "write daily rotated JSON logs to this directory")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	f.IntVar(&opts.checkInterval, "check-interval", 1, "minutes between configuration file checks")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	f.BoolVar(&opts.init, "init", false, "interactively create the configuration file and exit")
	cmd.MarkFlagsMutuallyExclusive("log", "logdir")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	if opts.checkInterval <= 0 {
		return fmt.Errorf("--check-interval must be positive, got %d", opts.checkInterval)
	}

	lg, err := logging.New(logging.Config{
		Level:   opts.logLevel,
		File:    opts.logFile,
		Dir:     opts.logDir,
		Keep:    logging.DefaultKeep,
		Service: "autosync",
	})
	if err != nil {
		return err
	}
	defer lg.Close()
	logger := lg.Slog()
	logger.Info("starting autosync", "version", Version, "config", opts.configPath)

	runner := command.NewExec(logger)

	var prober deploy.Prober
	if engine, err := deploy.NewEngine(); err != nil {
		logger.Warn("docker engine API unavailable, stack state comes from the compose CLI", "error", err)
	} else {
		defer engine.Close()
		prober = engine
	}
	compose := deploy.NewCompose(runner, prober, logger)

	generator := genai.New(genai.Config{}, logger)
	reconciler := sync.NewReconciler(runner, compose, generator, logger)
	sched := scheduler.New(logger, scheduler.WithObserver(metrics.ObserveJob))
	driver := daemon.NewDriver(opts.configPath, sched, reconciler, generator, logger)

	w, err := watcher.New(opts.configPath, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := driver.Start(ctx); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	d := &daemon.Daemon{
		Driver:        driver,
		Scheduler:     sched,
		Changes:       w.Changes(),
		CheckInterval: time.Duration(opts.checkInterval) * time.Minute,
		Logger:        logger,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	g.Go(func() error { return d.Run(gctx) })
	if opts.metricsAddr != "" {
		g.Go(func() error { return metrics.Serve(gctx, opts.metricsAddr, logger) })
	}

	err = g.Wait()
	logger.Info("autosync stopped")
	return err
}

func runInit(opts *options) error {
	if !cli.IsInteractive() {
		return errors.New("--init needs an interactive terminal")
	}
	prompter := cli.Survey{}

	if _, err := os.Stat(opts.configPath); err == nil {
		overwrite, err := prompter.Confirm(fmt.Sprintf("%s already exists. Overwrite it?", opts.configPath), false)
		if err != nil {
			return err
		}
		if !overwrite {
			return errors.New("aborted by user")
		}
	}

	cfg, err := cli.Wizard(prompter)
	if err != nil {
		return err
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := config.Save(opts.configPath, cfg); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s with %d project(s)\n", opts.configPath, len(cfg.Projects))
	return nil
}
