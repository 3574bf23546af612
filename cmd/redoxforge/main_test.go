package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into a fresh directory for commands that read files relative
// to the working directory.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestInitThenValidate(t *testing.T) {
	chdir(t)
	app := newApp()

	require.NoError(t, app.Run([]string{"redoxforge", "init", "--hostname", "devbox"}))

	_, err := os.Stat("system.hcl")
	require.NoError(t, err)
	_, err = os.Stat("forge.toml")
	require.NoError(t, err)

	require.NoError(t, app.Run([]string{"redoxforge", "validate"}))
}

func TestInitRefusesSecondRun(t *testing.T) {
	chdir(t)
	app := newApp()
	require.NoError(t, app.Run([]string{"redoxforge", "init"}))
	err := app.Run([]string{"redoxforge", "init"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to overwrite")
}

func TestValidateRejectsBadConfig(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "system.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
boot {
  disk_size_mb = 100
  esp_size_mb  = 200
}
`), 0644))

	err := newApp().Run([]string{"redoxforge", "validate", "--config", path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be larger than the ESP")
}

func TestValidateWithFlagOverrides(t *testing.T) {
	chdir(t)
	app := newApp()
	require.NoError(t, app.Run([]string{"redoxforge", "init"}))

	// A broken override must fail even though the file is fine.
	err := app.Run([]string{"redoxforge", "validate", "--disk-size", "100"})
	require.Error(t, err)

	require.NoError(t, app.Run([]string{"redoxforge", "validate", "--disk-size", "4096"}))
}

func TestValidateUnknownProfile(t *testing.T) {
	chdir(t)
	app := newApp()
	require.NoError(t, app.Run([]string{"redoxforge", "init"}))

	err := app.Run([]string{"redoxforge", "validate", "--profile", "kiosk"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown profile")
}

// --config and --settings are command flags, so they must be accepted after
// the subcommand name.
func TestFileFlagsAfterSubcommand(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "custom.hcl")
	require.NoError(t, os.WriteFile(path, []byte("hostname = \"flagged\"\n"), 0644))

	require.NoError(t, newApp().Run([]string{"redoxforge", "validate", "--config", path}))

	err := newApp().Run([]string{"redoxforge", "info", "--settings", "nope.toml"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "flag provided but not defined")
}

func TestDiffRequiresArgument(t *testing.T) {
	chdir(t)
	err := newApp().Run([]string{"redoxforge", "diff"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage")
}

func TestBootTestWithoutImage(t *testing.T) {
	chdir(t)
	err := newApp().Run([]string{"redoxforge", "boot-test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run build first")
}

func TestBackendFlagsExclusive(t *testing.T) {
	chdir(t)
	// The image check happens after backend selection, so the conflict
	// surfaces first.
	err := newApp().Run([]string{"redoxforge", "boot-test", "--qemu", "--ch"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}
