package main

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.Execute()
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return -1
}

func TestInvalidFlagValuesAreConfigErrors(t *testing.T) {
	err := execute(t, "--batch-size", "0", "--dir", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, exitConfig, exitCode(err))

	err = execute(t, "--page-size", "101", "--dir", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, exitConfig, exitCode(err))
}

func TestUnknownFlag(t *testing.T) {
	err := execute(t, "--nope")
	require.Error(t, err)
	assert.Equal(t, exitConfig, exitCode(err))
}

func TestMissingConfigFile(t *testing.T) {
	err := execute(t, "--config", "/definitely/not/here.yaml")
	require.Error(t, err)
	assert.Equal(t, exitConfig, exitCode(err))
}

func TestMissingTokenIsFatal(t *testing.T) {
	dir := t.TempDir()
	err := execute(t,
		"--dir", dir+"/videos",
		"--data-dir", dir+"/data",
		"--credentials", dir+"/credentials.json",
		"--token", dir+"/token.json",
	)
	require.Error(t, err)
	assert.Equal(t, exitFatal, exitCode(err))
}
