package cmd

import (
	"errors"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"
)

func TestSetVersionInfo(t *testing.T) {
	orig := versionInfo
	t.Cleanup(func() { versionInfo = orig })

	SetVersionInfo("1.2.3", "abc1234", "2026-08-29")

	assert.Equal(t, "1.2.3", versionInfo.Version)
	assert.Equal(t, "abc1234", versionInfo.Commit)
	assert.Equal(t, "2026-08-29", versionInfo.BuildDate)
}

func TestExitError(t *testing.T) {
	cause := errors.New("bucket missing")
	err := exitError(foundry.ExitInvalidArgument, "Invalid configuration", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Invalid configuration")
	assert.Contains(t, err.Error(), "exit code")
}

func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"work", "claim", "submit", "fetch", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
