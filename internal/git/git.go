package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"autosync/internal/command"
)

// Origin is the remote every managed repository pushes to and pulls from
const Origin = "origin"

var (
	// ErrNoRemote is returned when the named remote is not configured
	ErrNoRemote = errors.New("remote not configured")
	// ErrNoTrackingRef is returned when origin/<branch> was never fetched
	ErrNoTrackingRef = errors.New("no remote-tracking ref")
)

// Repo wraps git commands for one working tree
type Repo struct {
	Dir    string
	Runner command.Runner
}

// Open returns a Repo for dir without touching the filesystem
func Open(dir string, runner command.Runner) *Repo {
	return &Repo{Dir: dir, Runner: runner}
}

func (r *Repo) git(ctx context.Context, args ...string) (command.Result, error) {
	return r.Runner.Run(ctx, r.Dir, "git", args...)
}

// HasMetadata checks if the working tree already has a .git directory
func (r *Repo) HasMetadata() bool {
	_, err := os.Stat(filepath.Join(r.Dir, ".git"))
	return err == nil
}

// Init initializes a repository with rebase-on-pull and branch as the initial branch
func (r *Repo) Init(ctx context.Context, branch string) error {
	if _, err := r.git(ctx, "init"); err != nil {
		return fmt.Errorf("git init failed: %w", err)
	}
	if _, err := r.git(ctx, "config", "pull.rebase", "true"); err != nil {
		return fmt.Errorf("failed to set pull.rebase: %w", err)
	}
	if _, err := r.git(ctx, "symbolic-ref", "HEAD", "refs/heads/"+branch); err != nil {
		return fmt.Errorf("failed to set initial branch %s: %w", branch, err)
	}
	return nil
}

// SetIdentity sets the repository-local author name and email
func (r *Repo) SetIdentity(ctx context.Context, name, email string) error {
	if name != "" {
		if _, err := r.git(ctx, "config", "user.name", name); err != nil {
			return fmt.Errorf("failed to set user.name: %w", err)
		}
	}
	if email != "" {
		if _, err := r.git(ctx, "config", "user.email", email); err != nil {
			return fmt.Errorf("failed to set user.email: %w", err)
		}
	}
	return nil
}

// AddAll stages every working-tree change
func (r *Repo) AddAll(ctx context.Context) error {
	if _, err := r.git(ctx, "add", "."); err != nil {
		return fmt.Errorf("git add failed: %w", err)
	}
	return nil
}

// StagedDiff returns the staged diff, empty when nothing is staged
func (r *Repo) StagedDiff(ctx context.Context) (string, error) {
	res, err := r.git(ctx, "diff", "--staged")
	if err != nil {
		return "", fmt.Errorf("git diff failed: %w", err)
	}
	return res.Stdout, nil
}

// Commit records the staged changes with msg
func (r *Repo) Commit(ctx context.Context, msg string) error {
	if _, err := r.git(ctx, "commit", "-m", msg); err != nil {
		return fmt.Errorf("git commit failed: %w", err)
	}
	return nil
}

// Pull fetches branch from origin and integrates it
func (r *Repo) Pull(ctx context.Context, branch string) error {
	if _, err := r.git(ctx, "pull", Origin, branch); err != nil {
		return fmt.Errorf("git pull failed: %w", err)
	}
	return nil
}

// Push sends branch to origin
func (r *Repo) Push(ctx context.Context, branch string) error {
	if _, err := r.git(ctx, "push", Origin, branch); err != nil {
		return fmt.Errorf("git push failed: %w", err)
	}
	return nil
}

// RemoteURL returns the URL of the named remote
func (r *Repo) RemoteURL(ctx context.Context, name string) (string, error) {
	res, err := r.git(ctx, "remote", "get-url", name)
	if err != nil {
		var exitErr *command.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s: %w", name, ErrNoRemote)
		}
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// AddRemote registers a new remote
func (r *Repo) AddRemote(ctx context.Context, name, url string) error {
	if _, err := r.git(ctx, "remote", "add", name, url); err != nil {
		return fmt.Errorf("failed to add remote %s: %w", name, err)
	}
	return nil
}

// SetRemoteURL points an existing remote at url
func (r *Repo) SetRemoteURL(ctx context.Context, name, url string) error {
	if _, err := r.git(ctx, "remote", "set-url", name, url); err != nil {
		return fmt.Errorf("failed to set url of remote %s: %w", name, err)
	}
	return nil
}

// RemoteExists probes url with ls-remote
func (r *Repo) RemoteExists(ctx context.Context, url string) bool {
	_, err := r.git(ctx, "ls-remote", url)
	return err == nil
}

// RemoteHasBranch reports whether origin advertises branch
func (r *Repo) RemoteHasBranch(ctx context.Context, branch string) (bool, error) {
	res, err := r.git(ctx, "ls-remote", "--heads", Origin, branch)
	if err != nil {
		return false, fmt.Errorf("git ls-remote failed: %w", err)
	}
	return strings.TrimSpace(res.Stdout) != "", nil
}

// HeadHash returns the commit HEAD points at, or "" on an unborn branch
func (r *Repo) HeadHash(ctx context.Context) (string, error) {
	res, err := r.git(ctx, "rev-parse", "--verify", "--quiet", "HEAD")
	if err != nil {
		var exitErr *command.ExitError
		if errors.As(err, &exitErr) && exitErr.Result.ExitCode == 1 {
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Ahead counts local commits on HEAD that origin/branch does not have. It
// returns ErrNoTrackingRef when origin/branch does not exist locally.
func (r *Repo) Ahead(ctx context.Context, branch string) (int, error) {
	ref := "refs/remotes/" + Origin + "/" + branch
	if _, err := r.git(ctx, "rev-parse", "--verify", "--quiet", ref); err != nil {
		var exitErr *command.ExitError
		if errors.As(err, &exitErr) && exitErr.Result.ExitCode == 1 {
			return 0, fmt.Errorf("%s/%s: %w", Origin, branch, ErrNoTrackingRef)
		}
		return 0, fmt.Errorf("failed to resolve %s: %w", ref, err)
	}

	res, err := r.git(ctx, "rev-list", "--count", Origin+"/"+branch+"..HEAD")
	if err != nil {
		return 0, fmt.Errorf("failed to compare with %s/%s: %w", Origin, branch, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(res.Stdout))
	if err != nil {
		return 0, fmt.Errorf("unexpected rev-list output %q: %w", res.Stdout, err)
	}
	return n, nil
}

// CheckRepoStatus checks if the repository has uncommitted changes
func (r *Repo) CheckRepoStatus(ctx context.Context) (bool, error) {
	res, err := r.git(ctx, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git status failed: %w", err)
	}

	// If output is empty, there are no changes
	return strings.TrimSpace(res.Stdout) != "", nil
}
