// Package metrics exposes Prometheus counters for job runs, deployments and
// configuration reloads.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"autosync/internal/model"
	"autosync/internal/scheduler"
)

var (
	// jobRuns counts finished job runs by action and outcome
	jobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autosync_job_runs_total",
		Help: "Total job runs by action and outcome",
	}, []string{"action", "outcome"})

	// jobDuration tracks how long job runs take
	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autosync_job_duration_seconds",
		Help:    "Job run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
	}, []string{"action"})

	deploys = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autosync_deploys_total",
		Help: "Total compose redeployments by outcome",
	}, []string{"outcome"})

	reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autosync_reconciliations_total",
		Help: "Total configuration reconciliations by outcome",
	}, []string{"outcome"})

	scheduledJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autosync_scheduled_jobs",
		Help: "Number of jobs currently registered",
	})
)

// Outcome classifies the error a job returned
func Outcome(err error) model.RunOutcome {
	switch {
	case err == nil:
		return model.OutcomeSuccess
	case errors.Is(err, scheduler.ErrSkipped):
		return model.OutcomeSkipped
	default:
		return model.OutcomeFailed
	}
}

// ObserveJob is a scheduler.Observer
func ObserveJob(job *scheduler.Job, err error, elapsed time.Duration) {
	jobRuns.WithLabelValues(job.Action, string(Outcome(err))).Inc()
	jobDuration.WithLabelValues(job.Action).Observe(elapsed.Seconds())
}

// Deploy records one redeployment attempt
func Deploy(err error) {
	deploys.WithLabelValues(string(Outcome(err))).Inc()
}

// Reconciliation records one configuration reload attempt
func Reconciliation(err error) {
	reconciliations.WithLabelValues(string(Outcome(err))).Inc()
}

// SetScheduledJobs updates the registry size gauge
func SetScheduledJobs(n int) {
	scheduledJobs.Set(float64(n))
}

// Serve exposes /metrics on addr until ctx is done
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

var _ scheduler.Observer = ObserveJob
