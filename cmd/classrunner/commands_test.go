package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/reglet-dev/classrunner/internal/domain/units"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const teamProfile = `
packages:
  - artifactId: core
    version: "1.0"
    groupId: classrunner
    packaging: jar
`

// testEnv writes a config with a YAML profile store holding Team and Alice.
func testEnv(t *testing.T) (configPath, selectionPath string) {
	t.Helper()
	dir := t.TempDir()
	profiles := filepath.Join(dir, "profiles")
	require.NoError(t, os.MkdirAll(profiles, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(profiles, "Team.yaml"), []byte(teamProfile), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(profiles, "Alice.yaml"), []byte(teamProfile), 0o600))

	configPath = filepath.Join(dir, "config.yaml")
	cfg := "store:\n  driver: yaml\n  path: " + profiles + "\n" +
		"profiles:\n  default: Team\n  base_url: file:///nonexistent/\n" +
		"auth:\n  admins: [XWiki.Admin]\n"
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o600))

	selectionPath = filepath.Join(dir, "selection.yaml")
	t.Setenv("CLASSRUNNER_SELECTION_FILE", selectionPath)
	t.Setenv("CLASSRUNNER_IDENTITY", "")
	return configPath, selectionPath
}

// executeCommand runs a fresh command tree so flag state never leaks
// between tests.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeCommandContext(context.Background(), t, args...)
}

func executeCommandContext(ctx context.Context, t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	cfgFile, verbose = "", false

	root := &cobra.Command{Use: "classrunner", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "")
	root.AddCommand(newRunCmd(), newProfilesCmd(), newServeCmd(), newVersionCmd())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func runJSON(t *testing.T, args ...string) map[string]any {
	t.Helper()
	out, err := executeCommand(t, append([]string{"run", "--format", "json"}, args...)...)
	require.NoError(t, err, out)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	return got
}

func TestRun_EchoesArgumentsUnderDefaultProfile(t *testing.T) {
	configPath, _ := testEnv(t)

	got := runJSON(t, "--config", configPath, "classrunner.Echo", "--arg", "x=1", "--arg", "x=2")
	assert.Equal(t, "ClassRunnerData.Team", got["profile"])
	assert.Equal(t, "classrunner.Echo", got["unit"])
	assert.Equal(t, "x=[1 2]\n", got["raw"])
	assert.NotEmpty(t, got["invocationId"])
}

func TestRun_RemembersAndForgetsProfile(t *testing.T) {
	configPath, selectionPath := testEnv(t)

	got := runJSON(t, "--config", configPath, "--identity", "XWiki.Admin",
		"classrunner.Profile", "--profile", "Alice")
	assert.Equal(t, "ClassRunnerData.Alice", got["profile"])
	assert.Equal(t, "Alice", got["raw"])

	data, err := os.ReadFile(selectionPath)
	require.NoError(t, err)
	var persisted struct {
		Selections map[string]string `yaml:"selections"`
	}
	require.NoError(t, yaml.Unmarshal(data, &persisted))
	assert.Equal(t, "Alice", persisted.Selections["clpkg"])

	// The remembered override applies without --profile.
	got = runJSON(t, "--config", configPath, "--identity", "XWiki.Admin", "classrunner.Profile")
	assert.Equal(t, "Alice", got["raw"])

	got = runJSON(t, "--config", configPath, "--identity", "XWiki.Admin", "classrunner.Profile", "--profile", "")
	assert.Equal(t, "Team", got["raw"])
	got = runJSON(t, "--config", configPath, "--identity", "XWiki.Admin", "classrunner.Profile")
	assert.Equal(t, "Team", got["raw"])
}

func TestRun_Ephemeral(t *testing.T) {
	configPath, selectionPath := testEnv(t)

	got := runJSON(t, "--config", configPath, "--admin", "--ephemeral", "classrunner.Profile", "--profile", "Alice")
	assert.Equal(t, "Alice", got["raw"])
	assert.NoFileExists(t, selectionPath)
}

func TestRun_Errors(t *testing.T) {
	configPath, _ := testEnv(t)

	_, err := executeCommand(t, "run", "--config", configPath)
	assert.ErrorContains(t, err, "either a unit argument or --document is required")

	_, err = executeCommand(t, "run", "--config", configPath, "classrunner.Echo", "--arg", "novalue")
	assert.ErrorContains(t, err, `expected name=value, got "novalue"`)

	_, err = executeCommand(t, "run", "--config", configPath, "classrunner.Echo", "--base-url", "file:///tmp/")
	assert.ErrorContains(t, err, "require elevated rights")

	_, err = executeCommand(t, "run", "--config", configPath, "classrunner.Echo", "--format", "sarif")
	assert.ErrorContains(t, err, "invalid format")

	// Anonymous failures are masked but still fail the command.
	out, err := executeCommand(t, "run", "--config", configPath, "--quiet", "Missing.Unit")
	assert.ErrorContains(t, err, "failed (invocation ")
	assert.Contains(t, out, "Server Internal Error")

	// Elevated requesters see the cause.
	_, err = executeCommand(t, "run", "--config", configPath, "--admin", "Missing.Unit")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "Server Internal Error")
}

func TestProfilesCommands(t *testing.T) {
	configPath, _ := testEnv(t)

	out, err := executeCommand(t, "profiles", "list", "--config", configPath, "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "profile: ClassRunnerData.Alice")
	assert.Contains(t, out, "profile: ClassRunnerData.Team")

	out, err = executeCommand(t, "profiles", "packages", "Team", "--config", configPath,
		"--base-url", "https://repo.example/java/", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "https://repo.example/java/core-1.0.jar")

	_, err = executeCommand(t, "profiles", "packages", "Nobody", "--config", configPath)
	assert.Error(t, err)

	_, err = executeCommand(t, "profiles", "import", t.TempDir(), "--config", configPath)
	assert.ErrorContains(t, err, "requires an sql store driver")
}

func TestServe_StopsWithContext(t *testing.T) {
	configPath, _ := testEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := executeCommandContext(ctx, t, "serve", "--config", configPath, "--addr", "127.0.0.1:0")
	assert.NoError(t, err)

	_, err = executeCommandContext(ctx, t, "serve", "--config", configPath, "--addr", "256.0.0.1:http")
	assert.ErrorContains(t, err, "failed to listen")
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "classrunner version dev")
}

func TestParseUnitArgs(t *testing.T) {
	args, err := parseUnitArgs(nil)
	require.NoError(t, err)
	assert.False(t, args.Supplied())

	args, err = parseUnitArgs([]string{"a=1", "b=", "a=2", "c=x=y"})
	require.NoError(t, err)
	assert.Equal(t, units.Args{"a": []any{"1", "2"}, "b": "", "c": "x=y"}, args)

	_, err = parseUnitArgs([]string{"=v"})
	assert.Error(t, err)
}
