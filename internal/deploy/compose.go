// Package deploy redeploys Docker Compose stacks and reports whether they run.
package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"autosync/internal/command"
)

// Stack identifies one compose deployment
type Stack struct {
	// Dir is the working directory compose runs in, usually the project folder
	Dir     string
	File    string
	Project string
	EnvFile string
}

// Prober answers whether a compose project has running containers
type Prober interface {
	Running(ctx context.Context, project string) (bool, error)
}

// Compose drives the docker compose command line
type Compose struct {
	Runner command.Runner
	// Prober is consulted before the compose CLI; nil means CLI only
	Prober Prober
	Logger *slog.Logger
	// Binary and its leading arguments, "docker compose" by default
	Binary []string
}

// NewCompose creates a compose adapter using the docker CLI plugin
func NewCompose(runner command.Runner, prober Prober, logger *slog.Logger) *Compose {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compose{
		Runner: runner,
		Prober: prober,
		Logger: logger,
		Binary: []string{"docker", "compose"},
	}
}

func (c *Compose) args(st Stack, sub ...string) []string {
	args := append([]string{}, c.Binary[1:]...)
	if st.File != "" {
		args = append(args, "-f", st.File)
	}
	if st.Project != "" {
		args = append(args, "-p", st.Project)
	}
	if st.EnvFile != "" {
		args = append(args, "--env-file", st.EnvFile)
	}
	return append(args, sub...)
}

func (c *Compose) run(ctx context.Context, st Stack, sub ...string) (command.Result, error) {
	return c.Runner.Run(ctx, st.Dir, c.Binary[0], c.args(st, sub...)...)
}

// Redeploy brings the stack down, rebuilds its images without cache and starts it again
func (c *Compose) Redeploy(ctx context.Context, st Stack) error {
	logger := c.Logger.With("compose_project", st.Project)

	logger.Info("stopping stack")
	if _, err := c.run(ctx, st, "down"); err != nil {
		return fmt.Errorf("compose down failed: %w", err)
	}

	logger.Info("rebuilding images")
	if _, err := c.run(ctx, st, "build", "--no-cache"); err != nil {
		return fmt.Errorf("compose build failed: %w", err)
	}

	logger.Info("starting stack")
	res, err := c.run(ctx, st, "up", "-d")
	if err != nil {
		return fmt.Errorf("compose up failed: %w", err)
	}
	if out := strings.TrimSpace(res.Stdout + res.Stderr); out != "" {
		logger.Debug("compose up output", "output", out)
	}
	return nil
}

// IsRunning reports whether any container of the stack is running
func (c *Compose) IsRunning(ctx context.Context, st Stack) (bool, error) {
	if c.Prober != nil {
		running, err := c.Prober.Running(ctx, st.Project)
		if err == nil {
			return running, nil
		}
		c.Logger.Debug("engine probe failed, asking compose CLI", "compose_project", st.Project, "error", err)
	}

	res, err := c.run(ctx, st, "ps", "--status", "running", "-q")
	if err != nil {
		return false, fmt.Errorf("compose ps failed: %w", err)
	}
	return strings.TrimSpace(res.Stdout) != "", nil
}
