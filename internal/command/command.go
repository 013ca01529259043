package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// ErrNotFound is returned when the executable is not on PATH
var ErrNotFound = errors.New("command not found")

// Result holds the captured output of a finished command
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// ExitError is returned when a command ran but exited non-zero
type ExitError struct {
	Cmd    string
	Result Result
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Result.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(e.Result.Stdout)
	}
	if msg == "" {
		return fmt.Sprintf("%s: exit status %d", e.Cmd, e.Result.ExitCode)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Cmd, e.Result.ExitCode, msg)
}

// Runner executes external commands in a working directory
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (Result, error)
}

// Exec runs commands on the host with os/exec
type Exec struct {
	Logger *slog.Logger
	// Env is appended to the inherited environment when non-empty
	Env []string
}

// NewExec creates a host command runner
func NewExec(logger *slog.Logger) *Exec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exec{Logger: logger}
}

// Run executes name with args in dir and captures stdout and stderr
func (e *Exec) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(e.Env) > 0 {
		cmd.Env = append(cmd.Environ(), e.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	line := MaskSecrets(Line(name, args...))
	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(err, exec.ErrNotFound):
			e.Logger.Error("command not found", "cmd", line, "dir", dir)
			return res, fmt.Errorf("%s: %w", name, ErrNotFound)
		case errors.As(err, &exitErr):
			res.ExitCode = exitErr.ExitCode()
			e.Logger.Debug("command failed",
				"cmd", line,
				"dir", dir,
				"exit_code", res.ExitCode,
				"duration", res.Duration,
				"stderr", MaskSecrets(strings.TrimSpace(res.Stderr)))
			return res, &ExitError{Cmd: line, Result: res}
		default:
			return res, fmt.Errorf("failed to run %s: %w", line, err)
		}
	}

	e.Logger.Debug("command finished", "cmd", line, "dir", dir, "duration", res.Duration)
	return res, nil
}

// Line renders a command and its arguments for logs
func Line(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

var credentialsInURL = regexp.MustCompile(`(https?://)[^/@\s:]+:[^/@\s]+@`)

// MaskSecrets redacts user:token pairs embedded in URLs
func MaskSecrets(s string) string {
	return credentialsInURL.ReplaceAllString(s, "${1}***@")
}
