package deploy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autosync/internal/command/commandtest"
)

type stubProber struct {
	running bool
	err     error
	calls   int
}

func (p *stubProber) Running(context.Context, string) (bool, error) {
	p.calls++
	return p.running, p.err
}

func newTestCompose(fake *commandtest.Fake, prober Prober) *Compose {
	return NewCompose(fake, prober, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var testStack = Stack{Dir: "/srv/web", File: "docker-compose.yml", Project: "web", EnvFile: ".env"}

func TestRedeployRunsDownBuildUp(t *testing.T) {
	fake := &commandtest.Fake{}
	c := newTestCompose(fake, nil)

	require.NoError(t, c.Redeploy(context.Background(), testStack))
	assert.Equal(t, []string{
		"docker compose -f docker-compose.yml -p web --env-file .env down",
		"docker compose -f docker-compose.yml -p web --env-file .env build --no-cache",
		"docker compose -f docker-compose.yml -p web --env-file .env up -d",
	}, fake.Calls())
}

func TestRedeployWithoutEnvFile(t *testing.T) {
	fake := &commandtest.Fake{}
	c := newTestCompose(fake, nil)

	st := testStack
	st.EnvFile = ""
	require.NoError(t, c.Redeploy(context.Background(), st))
	assert.Equal(t, "docker compose -f docker-compose.yml -p web down", fake.Calls()[0])
}

func TestRedeployStopsOnBuildFailure(t *testing.T) {
	fake := &commandtest.Fake{}
	fake.Fail("docker compose -f docker-compose.yml -p web --env-file .env build", "no space left on device")
	c := newTestCompose(fake, nil)

	err := c.Redeploy(context.Background(), testStack)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build")
	assert.False(t, fake.Called("docker compose -f docker-compose.yml -p web --env-file .env up"))
}

func TestIsRunningPrefersProber(t *testing.T) {
	fake := &commandtest.Fake{}
	prober := &stubProber{running: true}
	c := newTestCompose(fake, prober)

	running, err := c.IsRunning(context.Background(), testStack)
	require.NoError(t, err)
	assert.True(t, running)
	assert.Empty(t, fake.Calls())
}

func TestIsRunningFallsBackToCLI(t *testing.T) {
	fake := &commandtest.Fake{}
	fake.On("docker compose", "3f2a1b\n")
	prober := &stubProber{err: errors.New("cannot connect to the Docker daemon")}
	c := newTestCompose(fake, prober)

	running, err := c.IsRunning(context.Background(), testStack)
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, 1, prober.calls)
	assert.Equal(t, []string{"docker compose -f docker-compose.yml -p web --env-file .env ps --status running -q"}, fake.Calls())
}

func TestIsRunningEmptyPS(t *testing.T) {
	fake := &commandtest.Fake{}
	c := newTestCompose(fake, nil)

	running, err := c.IsRunning(context.Background(), testStack)
	require.NoError(t, err)
	assert.False(t, running)
}
