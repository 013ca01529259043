package model

import (
	"regexp"
	"strings"
	"time"
)

// Mode selects which recurring actions a project gets
type Mode string

const (
	ModePush        Mode = "push"
	ModePull        Mode = "pull"
	ModePushAndPull Mode = "push_and_pull"
)

// Pushes reports whether the mode schedules commit-and-push
func (m Mode) Pushes() bool {
	return m == ModePush || m == ModePushAndPull
}

// Pulls reports whether the mode schedules pull-and-deploy
func (m Mode) Pulls() bool {
	return m == ModePull || m == ModePushAndPull
}

// DefaultBranch is used when a project does not name one
const DefaultBranch = "main"

// GlobalConfig represents the whole configuration file
type GlobalConfig struct {
	User         string          `json:"github_user" yaml:"github_user"`
	Email        string          `json:"github_email" yaml:"github_email"`
	Token        string          `json:"github_token" yaml:"github_token"`
	GenAIKey     string          `json:"google_api_key" yaml:"google_api_key"`
	GenAIModel   string          `json:"genai_model,omitempty" yaml:"genai_model,omitempty"`
	GenAIBaseURL string          `json:"genai_base_url,omitempty" yaml:"genai_base_url,omitempty" validate:"omitempty,url"`
	Projects     []ProjectConfig `json:"projects" yaml:"projects" validate:"dive"`
}

// ProjectConfig represents one entry of the projects list
type ProjectConfig struct {
	FolderPath     string `json:"folder_path" yaml:"folder_path" validate:"required"`
	RepoName       string `json:"repo_name" yaml:"repo_name" validate:"required"`
	Interval       int    `json:"interval" yaml:"interval" validate:"gt=0"`
	Private        bool   `json:"private" yaml:"private"`
	Mode           Mode   `json:"option,omitempty" yaml:"option,omitempty" validate:"omitempty,oneof=push pull push_and_pull"`
	ComposeFile    string `json:"docker_compose_file,omitempty" yaml:"docker_compose_file,omitempty"`
	ComposeProject string `json:"docker_compose_project_name,omitempty" yaml:"docker_compose_project_name,omitempty"`
	EnvFile        string `json:"env_file,omitempty" yaml:"env_file,omitempty"`
	Token          string `json:"github_token_api,omitempty" yaml:"github_token_api,omitempty"`
	Email          string `json:"github_email,omitempty" yaml:"github_email,omitempty"`
	User           string `json:"github_user,omitempty" yaml:"github_user,omitempty"`
	Host           string `json:"gitea_url,omitempty" yaml:"gitea_url,omitempty"`
	Branch         string `json:"git_branch,omitempty" yaml:"git_branch,omitempty"`
}

// IntervalDuration returns the configured interval in minutes as a duration
func (p ProjectConfig) IntervalDuration() time.Duration {
	return time.Duration(p.Interval) * time.Minute
}

// Deploys reports whether pull-and-deploy should manage a compose stack
func (p ProjectConfig) Deploys() bool {
	return p.ComposeFile != ""
}

var composeNameInvalid = regexp.MustCompile(`[^a-z0-9_-]+`)

// ComposeProjectName derives a compose project name from a repository name
func ComposeProjectName(repo string) string {
	name := composeNameInvalid.ReplaceAllString(strings.ToLower(repo), "-")
	return strings.Trim(name, "-")
}

// Credentials holds the precedence-resolved identity used for one project
type Credentials struct {
	User  string
	Email string
	Token string
	// Host is empty for the default hosting service
	Host string
}

// DefaultHost reports whether the credentials target the default hosting service
func (c Credentials) DefaultHost() bool {
	return c.Host == ""
}

// Resolve picks the project override for each field and falls back to the global default
func Resolve(p ProjectConfig, g GlobalConfig) Credentials {
	c := Credentials{User: g.User, Email: g.Email, Token: g.Token, Host: p.Host}
	if p.User != "" {
		c.User = p.User
	}
	if p.Email != "" {
		c.Email = p.Email
	}
	if p.Token != "" {
		c.Token = p.Token
	}
	return c
}

// RunOutcome is the result of one job run
type RunOutcome string

const (
	OutcomeSkipped RunOutcome = "skipped"
	OutcomeSuccess RunOutcome = "success"
	OutcomeFailed  RunOutcome = "failed"
)
