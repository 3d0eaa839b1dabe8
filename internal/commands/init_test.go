package commands_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finboard/finboard/internal/commands"
	"github.com/finboard/finboard/internal/config"
)

// runFinboard executes the CLI in-process with stdin as input and returns
// everything written to stdout and stderr.
func runFinboard(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{config.EnvAPIURL, config.EnvAPIToken, config.EnvLogLevel} {
		t.Setenv(k, "")
	}

	cmd := commands.NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()
	out, err := runFinboard(t, "", "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized finboard workspace")

	expectedDirs := []string{
		"import",
		filepath.Join("import", "processed"),
		"logs",
	}
	for _, d := range expectedDirs {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}
	_, err = os.Stat(filepath.Join(dir, "import", ".gitkeep"))
	assert.NoError(t, err)
}

func TestInit_Config(t *testing.T) {
	dir := t.TempDir()
	_, err := runFinboard(t, "", "init", dir, "--api-url", "https://finance.example.com/api/", "--payment-type", "2")
	require.NoError(t, err)

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, "https://finance.example.com/api/", cfg.API.BaseURL)
	assert.Equal(t, 2, cfg.Import.PaymentTypeID)
	assert.Equal(t, config.UnmatchedInclude, cfg.Import.UnmatchedRows)
}

func TestInit_EnvExampleAndGitignore(t *testing.T) {
	dir := t.TempDir()
	_, err := runFinboard(t, "", "init", dir)
	require.NoError(t, err)

	env, err := os.ReadFile(filepath.Join(dir, ".env.example"))
	require.NoError(t, err)
	for _, k := range []string{config.EnvAPIURL, config.EnvAPIToken, config.EnvLogLevel} {
		assert.Contains(t, string(env), k+"=")
	}

	gitignore, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(gitignore), ".env\n")
	assert.Contains(t, string(gitignore), "logs/")
}

func TestInit_RefusesExistingWorkspace(t *testing.T) {
	dir := t.TempDir()
	_, err := runFinboard(t, "", "init", dir)
	require.NoError(t, err)

	_, err = runFinboard(t, "", "init", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInit_RejectsBadURL(t *testing.T) {
	dir := t.TempDir()
	_, err := runFinboard(t, "", "init", dir, "--api-url", "not a url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.base_url")

	_, statErr := os.Stat(filepath.Join(dir, config.FileName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestVersion(t *testing.T) {
	out, err := runFinboard(t, "", "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "dev (commit: none")
}
