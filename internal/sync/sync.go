package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"autosync/internal/command"
	"autosync/internal/deploy"
	"autosync/internal/git"
	"autosync/internal/github"
	"autosync/internal/model"
	"autosync/internal/scheduler"
)

// Action names used in job names, logs and metrics
const (
	ActionCommitAndPush = "commit_and_push"
	ActionPullAndDeploy = "pull_and_deploy"
)

// ErrUnresolvedRemote is returned when no repository owner is configured
var ErrUnresolvedRemote = errors.New("unresolved remote")

// Hosting creates repositories on the default hosting service
type Hosting interface {
	CreateRepo(ctx context.Context, name string, private bool) error
}

// HostingFactory returns a hosting client authenticated with token
type HostingFactory func(token string) Hosting

// Deployer redeploys and inspects compose stacks
type Deployer interface {
	Redeploy(ctx context.Context, st deploy.Stack) error
	IsRunning(ctx context.Context, st deploy.Stack) (bool, error)
}

// MessageGenerator writes a commit message for a staged diff
type MessageGenerator interface {
	CommitMessage(ctx context.Context, diff string) (string, error)
}

// Reconciler prepares project folders and builds their recurring tasks
type Reconciler struct {
	Runner    command.Runner
	Hosting   HostingFactory
	Deployer  Deployer
	Generator MessageGenerator
	Logger    *slog.Logger
}

// NewReconciler creates a Reconciler using the GitHub REST client for repository creation
func NewReconciler(runner command.Runner, deployer Deployer, generator MessageGenerator, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		Runner:    runner,
		Hosting:   func(token string) Hosting { return github.NewClient(token) },
		Deployer:  deployer,
		Generator: generator,
		Logger:    logger,
	}
}

// RemoteURL builds the HTTPS clone URL for repo, embedding the token when present
func RemoteURL(c model.Credentials, repo string) (string, error) {
	if c.User == "" {
		return "", fmt.Errorf("%s: no repository owner configured: %w", repo, ErrUnresolvedRemote)
	}
	if c.DefaultHost() {
		if c.Token != "" {
			return fmt.Sprintf("https://x-access-token:%s@github.com/%s/%s.git", c.Token, c.User, repo), nil
		}
		return fmt.Sprintf("https://github.com/%s/%s.git", c.User, repo), nil
	}
	if c.Token != "" {
		return fmt.Sprintf("https://%s:%s@%s/%s/%s.git", c.User, c.Token, c.Host, c.User, repo), nil
	}
	return fmt.Sprintf("https://%s/%s/%s.git", c.Host, c.User, repo), nil
}

// Bootstrap makes sure the project folder is a repository wired to its remote
// and returns the recurring tasks its mode asks for. An error means the
// project was skipped; other projects are not affected.
func (r *Reconciler) Bootstrap(ctx context.Context, p model.ProjectConfig, g model.GlobalConfig) ([]scheduler.Task, error) {
	logger := r.Logger.With("project", p.RepoName)

	if err := os.MkdirAll(p.FolderPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create folder %s: %w", p.FolderPath, err)
	}

	repo := git.Open(p.FolderPath, r.Runner)
	if !repo.HasMetadata() {
		logger.Info("initializing repository", "folder", p.FolderPath, "branch", p.Branch)
		if err := repo.Init(ctx, p.Branch); err != nil {
			return nil, err
		}
	}

	creds := model.Resolve(p, g)
	url, err := RemoteURL(creds, p.RepoName)
	if err != nil {
		return nil, err
	}

	if !repo.RemoteExists(ctx, url) {
		r.createRemote(ctx, logger, p, creds)
	}

	if err := repo.SetIdentity(ctx, creds.User, creds.Email); err != nil {
		logger.Warn("failed to set commit identity", "error", err)
	}

	if err := ensureOrigin(ctx, repo, url); err != nil {
		return nil, err
	}
	logger.Debug("origin configured", "url", command.MaskSecrets(url))

	if dirty, err := repo.CheckRepoStatus(ctx); err == nil && dirty {
		logger.Info("working tree has uncommitted changes")
	}

	proj := &Project{
		Config:      p,
		Credentials: creds,
		Repo:        repo,
		RemoteURL:   url,
		Deployer:    r.Deployer,
		Generator:   r.Generator,
		Logger:      logger,
	}

	var tasks []scheduler.Task
	if p.Mode.Pushes() {
		tasks = append(tasks, scheduler.Task{
			Project:  p.RepoName,
			Action:   ActionCommitAndPush,
			Interval: p.IntervalDuration(),
			Run:      proj.CommitAndPush,
		})
	}
	if p.Mode.Pulls() {
		tasks = append(tasks, scheduler.Task{
			Project:  p.RepoName,
			Action:   ActionPullAndDeploy,
			Interval: p.IntervalDuration(),
			Run:      proj.PullAndDeploy,
		})
	}
	logger.Info("project bootstrapped", "mode", string(p.Mode), "interval", p.IntervalDuration(), "jobs", len(tasks))
	return tasks, nil
}

func (r *Reconciler) createRemote(ctx context.Context, logger *slog.Logger, p model.ProjectConfig, creds model.Credentials) {
	if !creds.DefaultHost() {
		logger.Warn("remote repository not found, create it manually", "host", creds.Host, "repo", p.RepoName)
		return
	}
	if creds.Token == "" {
		logger.Warn("remote repository not found and no API token configured to create it", "repo", p.RepoName)
		return
	}

	logger.Info("creating remote repository", "repo", p.RepoName, "private", p.Private)
	if err := r.Hosting(creds.Token).CreateRepo(ctx, p.RepoName, p.Private); err != nil {
		logger.Warn("failed to create remote repository", "error", err)
		return
	}
	logger.Info("remote repository created", "repo", p.RepoName)
}

func ensureOrigin(ctx context.Context, repo *git.Repo, url string) error {
	current, err := repo.RemoteURL(ctx, git.Origin)
	switch {
	case errors.Is(err, git.ErrNoRemote):
		return repo.AddRemote(ctx, git.Origin, url)
	case err != nil:
		return err
	case current != url:
		return repo.SetRemoteURL(ctx, git.Origin, url)
	}
	return nil
}
