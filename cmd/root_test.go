//go:build !integration

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"ingest", "report", "migrate", "reset", "serve", "export"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "leadpipe", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestIngestCommand_Flags(t *testing.T) {
	for _, name := range []string{"calls", "chats", "format", "encoding", "dry-run"} {
		require.NotNil(t, ingestCmd.Flags().Lookup(name), "ingest should have --%s flag", name)
	}
}

func TestResetCommand_HasConfirmFlag(t *testing.T) {
	require.NotNil(t, resetCmd.Flags().Lookup("confirm"))
}

func TestExportCommand_HasNotionSubcommand(t *testing.T) {
	found := false
	for _, c := range exportCmd.Commands() {
		if c.Name() == "notion" {
			found = true
		}
	}
	assert.True(t, found)
}
