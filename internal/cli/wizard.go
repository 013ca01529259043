package cli

import (
	"path/filepath"
	"strings"

	"autosync/internal/model"
)

// Wizard asks for shared credentials and any number of projects and returns
// the resulting configuration. Defaults are applied by the config package.
func Wizard(p Prompter) (*model.GlobalConfig, error) {
	cfg := &model.GlobalConfig{}
	var err error

	if cfg.User, err = p.Input("GitHub user (repository owner)", ""); err != nil {
		return nil, err
	}
	if cfg.Email, err = p.Input("Commit email", ""); err != nil {
		return nil, err
	}
	if cfg.Token, err = p.Password("GitHub token (leave empty to skip repository creation)"); err != nil {
		return nil, err
	}
	if cfg.GenAIKey, err = p.Password("Google AI API key (leave empty for fixed commit messages)"); err != nil {
		return nil, err
	}

	for {
		more, err := p.Confirm("Add a project?", len(cfg.Projects) == 0)
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
		proj, err := askProject(p)
		if err != nil {
			return nil, err
		}
		cfg.Projects = append(cfg.Projects, proj)
	}
	return cfg, nil
}

func askProject(p Prompter) (model.ProjectConfig, error) {
	var proj model.ProjectConfig

	folder, err := p.Input("Folder to synchronize", "")
	if err != nil {
		return proj, err
	}
	if proj.FolderPath, err = AbsPath(folder); err != nil {
		return proj, err
	}

	if proj.RepoName, err = p.Input("Repository name", filepath.Base(proj.FolderPath)); err != nil {
		return proj, err
	}
	if proj.Interval, err = AskInt(p, "Interval in minutes", 5); err != nil {
		return proj, err
	}

	mode, err := p.Choose("What should be done?", []string{string(model.ModePush), string(model.ModePull), string(model.ModePushAndPull)}, string(model.ModePush))
	if err != nil {
		return proj, err
	}
	proj.Mode = model.Mode(mode)

	if proj.Private, err = p.Confirm("Private repository?", true); err != nil {
		return proj, err
	}
	if proj.Branch, err = p.Input("Branch", model.DefaultBranch); err != nil {
		return proj, err
	}
	if proj.Host, err = p.Input("Gitea host (empty for github.com)", ""); err != nil {
		return proj, err
	}

	if proj.Mode.Pulls() {
		if proj.ComposeFile, err = p.Input("Docker compose file to redeploy (empty for none)", ""); err != nil {
			return proj, err
		}
		if proj.ComposeFile != "" {
			if proj.EnvFile, err = p.Input("Env file (empty for none)", ""); err != nil {
				return proj, err
			}
		}
	}

	proj.RepoName = strings.TrimSpace(proj.RepoName)
	proj.Host = strings.TrimSpace(proj.Host)
	return proj, nil
}
