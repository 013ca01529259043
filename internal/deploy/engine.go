package deploy

import (
	"context"
	"fmt"

	"github.com/moby/moby/client"
)

// ComposeProjectLabel is the label compose sets on every container it creates
const ComposeProjectLabel = "com.docker.compose.project"

// Engine asks the Docker Engine API for the containers of a compose project
type Engine struct {
	cli *client.Client
}

// NewEngine connects using DOCKER_HOST and friends from the environment
func NewEngine() (*Engine, error) {
	cli, err := client.New(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Engine{cli: cli}, nil
}

// Running implements Prober
func (e *Engine) Running(ctx context.Context, project string) (bool, error) {
	filters := make(client.Filters).
		Add("label", ComposeProjectLabel+"="+project).
		Add("status", "running")

	res, err := e.cli.ContainerList(ctx, client.ContainerListOptions{Filters: filters})
	if err != nil {
		return false, fmt.Errorf("failed to list containers of %s: %w", project, err)
	}
	return len(res.Items) > 0, nil
}

// Close releases the API connection
func (e *Engine) Close() error {
	return e.cli.Close()
}
