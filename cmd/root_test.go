package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{
		"migrate", "company", "ratings", "thesis", "hypothesis",
		"kill", "guidance", "classify", "interpret", "monitor", "serve",
	}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "thesis-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestThesisCreateCommand_RequiredFlags(t *testing.T) {
	flag := thesisCreateCmd.Flags().Lookup("file")
	require.NotNil(t, flag, "thesis create should have --file flag")

	replace := thesisCreateCmd.Flags().Lookup("replace")
	require.NotNil(t, replace, "thesis create should have --replace flag")
}

func TestKillEvaluateCommand_Flags(t *testing.T) {
	require.NotNil(t, killEvaluateCmd.Flags().Lookup("observe"))
	require.NotNil(t, killEvaluateCmd.Flags().Lookup("evidence"))
}

func TestClassifyCommand_Flags(t *testing.T) {
	require.NotNil(t, classifyCmd.Flags().Lookup("findings"))
	require.NotNil(t, classifyCmd.Flags().Lookup("relationship"))
	require.NotNil(t, classifyCmd.Flags().Lookup("contrarian"))
}
