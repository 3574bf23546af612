package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "forge.toml"))
	require.NoError(t, err)
	assert.Equal(t, "output", s.OutputDir)
	assert.Equal(t, "sgdisk", s.Tools.Sgdisk)
	assert.Equal(t, "qemu-system-x86_64", s.VM.Qemu)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forge.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
output_dir = "build"
profile = "desktop"

[artifacts]
kernel = "/opt/redox/kernel"

[tools]
sgdisk = "/usr/local/bin/sgdisk"
`), 0644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "build", s.OutputDir)
	assert.Equal(t, "desktop", s.Profile)
	assert.Equal(t, "/opt/redox/kernel", s.Artifacts.Kernel)
	assert.Equal(t, "/usr/local/bin/sgdisk", s.Tools.Sgdisk)

	// Untouched sections keep their defaults.
	assert.Equal(t, "mkfs.vfat", s.Tools.MkfsVfat)
	assert.Equal(t, filepath.Join("artifacts", "bootloader.efi"), s.Artifacts.Bootloader)
}

func TestLoadBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forge.toml")
	require.NoError(t, os.WriteFile(path, []byte(`output_dir = [`), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestDerivedPaths(t *testing.T) {
	s := Defaults()
	s.OutputDir = "build"
	assert.Equal(t, filepath.Join("build", "redox.img"), s.ImagePath())
	assert.Equal(t, filepath.Join("build", "initfs.img"), s.InitfsPath())
}
