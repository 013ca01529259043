package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootFlags(t *testing.T) {
	cmd := newRootCmd()

	for name, want := range map[string]string{
		"config":         "config.json",
		"log":            "",
		"logdir":         "logs",
		"log-level":      "info",
		"check-interval": "1",
		"metrics-addr":   "",
		"init":           "false",
	} {
		flag := cmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, want, flag.DefValue, name)
	}
}

func TestRootRejectsArguments(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"extra"})
	assert.Error(t, cmd.Execute())
}

func TestLogFlagsAreExclusive(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--log", "a.log", "--logdir", "logs"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}

func TestRunRejectsNonPositiveCheckInterval(t *testing.T) {
	err := run(t.Context(), &options{configPath: "config.json", checkInterval: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--check-interval")
}
