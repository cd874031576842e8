package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlags_Defaults(t *testing.T) {
	filterPattern = ""
	shellPath = ""
	quiet = false

	err := rootCmd.ParseFlags([]string{"echo", "hi"})
	require.NoError(t, err)
	assert.Empty(t, filterPattern)
	assert.Empty(t, shellPath)
	assert.False(t, quiet)
}

func TestFlags_FilterShellQuiet(t *testing.T) {
	filterPattern = ""
	shellPath = ""
	quiet = false

	err := rootCmd.ParseFlags([]string{"--filter", "*.go", "--shell", "/bin/bash", "-q", "gofmt", "-w"})
	require.NoError(t, err)
	assert.Equal(t, "*.go", filterPattern)
	assert.Equal(t, "/bin/bash", shellPath)
	assert.True(t, quiet)
}

func TestFlags_StopParsingAtFirstPositional(t *testing.T) {
	filterPattern = ""

	err := rootCmd.ParseFlags([]string{"gofmt", "-w", "--filter", "*.go"})
	require.NoError(t, err)
	// "-w" and everything after the first positional belongs to the child
	// command, not to offstage's own flags.
	assert.Empty(t, filterPattern)
	assert.Equal(t, []string{"gofmt", "-w", "--filter", "*.go"}, rootCmd.Flags().Args())
}

func TestRootCommand_InvalidFlagDoesNotPrintUsage(t *testing.T) {
	var errBuf strings.Builder
	rootCmd.SetOut(&errBuf)
	rootCmd.SetErr(&errBuf)
	rootCmd.SetArgs([]string{"--definitely-not-a-real-flag"})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
	assert.NotContains(t, errBuf.String(), "Usage:")

	rootCmd.SetArgs(nil)
	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
}

func TestRootCommand_SilencesUsageAndErrors(t *testing.T) {
	assert.True(t, rootCmd.SilenceUsage)
	assert.True(t, rootCmd.SilenceErrors)
}

func TestRootCommand_RequiresACommand(t *testing.T) {
	rootCmd.SetArgs([]string{})
	err := rootCmd.Execute()
	require.Error(t, err)

	rootCmd.SetArgs(nil)
}
