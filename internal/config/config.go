package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"autosync/internal/model"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid configuration")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Load reads, defaults and validates the configuration file at path.
// Files ending in .yaml or .yml are parsed as YAML, everything else as JSON.
func Load(path string) (*model.GlobalConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg model.GlobalConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration as indented JSON
func Save(path string, cfg *model.GlobalConfig) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file holds API tokens
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ModTime returns the modification time used as the config fingerprint
func ModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// ApplyDefaults fills optional project fields
func ApplyDefaults(cfg *model.GlobalConfig) {
	for i := range cfg.Projects {
		p := &cfg.Projects[i]
		if p.Mode == "" {
			p.Mode = model.ModePush
		}
		if p.Branch == "" {
			p.Branch = model.DefaultBranch
		}
		if p.ComposeFile != "" && p.ComposeProject == "" {
			p.ComposeProject = model.ComposeProjectName(p.RepoName)
		}
		p.Host = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(p.Host, "https://"), "http://"), "/")
	}
}

// Validate checks field constraints and cross-field rules
func Validate(cfg *model.GlobalConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	for i, p := range cfg.Projects {
		if p.ComposeFile != "" && p.ComposeProject == "" {
			return fmt.Errorf("%w: projects[%d].docker_compose_project_name: cannot be derived from repo_name %q", ErrInvalid, i, p.RepoName)
		}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "GlobalConfig.")
	switch fe.Tag() {
	case "required":
		return field + ": required"
	case "gt":
		return fmt.Sprintf("%s: must be greater than %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s: must be one of %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s: failed %s", field, fe.Tag())
	}
}

// CheckCredentials verifies every project can resolve a repository owner
func CheckCredentials(cfg *model.GlobalConfig) error {
	var missing []string
	for _, p := range cfg.Projects {
		if model.Resolve(p, *cfg).User == "" {
			missing = append(missing, p.RepoName)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("github_user is not configured (set it globally or per project) for: %s", strings.Join(missing, ", "))
	}
	return nil
}
