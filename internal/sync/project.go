package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"autosync/internal/deploy"
	"autosync/internal/genai"
	"autosync/internal/git"
	"autosync/internal/metrics"
	"autosync/internal/model"
	"autosync/internal/scheduler"
)

// FallbackMessage is committed when no generated message is available
const FallbackMessage = "Auto commit"

// ErrGenerationFault is returned when the generator flagged its own output as unusable
var ErrGenerationFault = errors.New("commit message generation fault")

// Project is the per-project state the recurring actions run against. It is
// built once per bootstrap and never shared between projects.
type Project struct {
	Config      model.ProjectConfig
	Credentials model.Credentials
	Repo        *git.Repo
	// RemoteURL is re-applied to origin before every pull and push
	RemoteURL string

	Deployer  Deployer
	Generator MessageGenerator
	Logger    *slog.Logger
}

func (p *Project) logger(ctx context.Context, action string) *slog.Logger {
	return p.Logger.With("action", action, "run_id", scheduler.RunID(ctx))
}

// CommitAndPush commits staged changes with a generated message and pushes them.
// When nothing is staged but earlier commits never reached the remote, only the
// pull and push are retried.
func (p *Project) CommitAndPush(ctx context.Context) error {
	logger := p.logger(ctx, ActionCommitAndPush)

	if err := p.Repo.AddAll(ctx); err != nil {
		return err
	}
	diff, err := p.Repo.StagedDiff(ctx)
	if err != nil {
		return err
	}

	if strings.TrimSpace(diff) == "" {
		pending, err := p.unpushed(ctx)
		if err != nil {
			logger.Warn("failed to compare with remote", "error", err)
		}
		if !pending {
			logger.Info("no changes to push")
			return fmt.Errorf("%s: %w", p.Config.RepoName, scheduler.ErrSkipped)
		}
		logger.Info("retrying push of unpushed commits")
	} else {
		s := genai.Summarize(diff)
		logger.Info("staged changes", "files", s.Files, "added", s.Added, "deleted", s.Deleted)

		msg, err := p.message(ctx, logger, diff)
		if err != nil {
			return err
		}
		if err := p.Repo.Commit(ctx, msg); err != nil {
			return err
		}
		logger.Info("committed", "message", msg)
	}

	if err := p.pullBeforePush(ctx, logger); err != nil {
		return err
	}
	if err := p.refreshRemote(ctx); err != nil {
		return err
	}
	if err := p.Repo.Push(ctx, p.Config.Branch); err != nil {
		return err
	}
	logger.Info("pushed", "branch", p.Config.Branch)
	return nil
}

func (p *Project) message(ctx context.Context, logger *slog.Logger, diff string) (string, error) {
	if p.Generator == nil {
		return FallbackMessage, nil
	}

	msg, err := p.Generator.CommitMessage(ctx, diff)
	switch {
	case errors.Is(err, genai.ErrDisabled):
		return FallbackMessage, nil
	case errors.Is(err, genai.ErrRejected):
		logger.Error("generator rejected the diff, skipping commit", "error", err)
		return "", fmt.Errorf("%s: %w", p.Config.RepoName, ErrGenerationFault)
	case err != nil:
		logger.Warn("commit message generation failed, using fallback", "error", err)
		return FallbackMessage, nil
	case strings.Contains(msg, genai.ErrorMarker):
		logger.Error("generator rejected the diff, skipping commit", "reply", msg)
		return "", fmt.Errorf("%s: %w", p.Config.RepoName, ErrGenerationFault)
	case strings.TrimSpace(msg) == "":
		return FallbackMessage, nil
	}
	return msg, nil
}

// unpushed reports whether HEAD holds commits origin has not seen. Without a
// remote-tracking ref nothing was ever fetched, so any commit counts.
func (p *Project) unpushed(ctx context.Context) (bool, error) {
	ahead, err := p.Repo.Ahead(ctx, p.Config.Branch)
	if errors.Is(err, git.ErrNoTrackingRef) {
		head, err := p.Repo.HeadHash(ctx)
		return head != "", err
	}
	return ahead > 0, err
}

// pullBeforePush pulls the branch; a remote that does not have the branch yet
// is pushed to directly.
func (p *Project) pullBeforePush(ctx context.Context, logger *slog.Logger) error {
	err := p.pull(ctx)
	if err == nil {
		return nil
	}
	has, lsErr := p.Repo.RemoteHasBranch(ctx, p.Config.Branch)
	if lsErr != nil || has {
		return err
	}
	logger.Info("remote branch does not exist yet, pushing without pull", "branch", p.Config.Branch)
	return nil
}

// PullAndDeploy pulls the branch and redeploys the compose stack when the
// pull brought new commits or the stack is not running.
func (p *Project) PullAndDeploy(ctx context.Context) error {
	logger := p.logger(ctx, ActionPullAndDeploy)

	before, err := p.Repo.HeadHash(ctx)
	if err != nil {
		return err
	}
	if err := p.pull(ctx); err != nil {
		return err
	}
	after, err := p.Repo.HeadHash(ctx)
	if err != nil {
		return err
	}
	changed := before != after
	if changed {
		logger.Info("pulled new commits", "from", short(before), "to", short(after))
	}

	if !p.Config.Deploys() {
		logger.Info("nothing to deploy")
		return nil
	}

	st := p.stack()
	running, err := p.Deployer.IsRunning(ctx, st)
	if err != nil {
		logger.Warn("failed to query stack state, assuming it is down", "error", err)
		running = false
	}
	if !changed && running {
		logger.Info("nothing to deploy")
		return nil
	}

	logger.Info("redeploying stack", "compose_project", st.Project, "head_changed", changed, "running", running)
	err = p.Deployer.Redeploy(ctx, st)
	metrics.Deploy(err)
	if err != nil {
		return fmt.Errorf("redeploy of %s failed: %w", st.Project, err)
	}
	logger.Info("stack redeployed", "compose_project", st.Project)
	return nil
}

func (p *Project) stack() deploy.Stack {
	return deploy.Stack{
		Dir:     p.Config.FolderPath,
		File:    p.Config.ComposeFile,
		Project: p.Config.ComposeProject,
		EnvFile: p.Config.EnvFile,
	}
}

func (p *Project) refreshRemote(ctx context.Context) error {
	return p.Repo.SetRemoteURL(ctx, git.Origin, p.RemoteURL)
}

func (p *Project) pull(ctx context.Context) error {
	if err := p.refreshRemote(ctx); err != nil {
		return err
	}
	return p.Repo.Pull(ctx, p.Config.Branch)
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	if hash == "" {
		return "(none)"
	}
	return hash
}
