package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redoxforge/redoxforge/internal/config"
)

func testManifest(t *testing.T) *Manifest {
	t.Helper()
	cfg := config.Defaults()
	m := New(&cfg)
	m.Packages = []Package{
		{Name: "base", Version: "0.1.0", StorePath: "/store/base-0.1.0"},
		{Name: "ion", Version: "1.0.0", StorePath: "/store/ion-1.0.0"},
	}
	require.NoError(t, m.Stamp(1, "initial build"))
	return m
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Defaults()
	m := New(&cfg)

	assert.Equal(t, SchemaVersion, m.ManifestVersion)
	assert.Equal(t, "redox", m.System.Hostname)
	assert.ElementsMatch(t,
		append(append([]string{}, cfg.Hardware.StorageDrivers...), cfg.Hardware.NetworkDrivers...),
		m.Drivers.All)
	assert.Equal(t, cfg.Hardware.StorageDrivers, m.Drivers.Initfs)
	assert.Contains(t, m.Drivers.Core, "logd")
	assert.Contains(t, m.Users, "user")
}

func TestStamp(t *testing.T) {
	m := testManifest(t)
	assert.Equal(t, uint64(1), m.Generation.ID)
	assert.Equal(t, "initial build", m.Generation.Description)
	assert.NotEmpty(t, m.Generation.BuildHash)
	assert.NotEmpty(t, m.Generation.Timestamp)

	// The build hash covers content, not generation metadata.
	first := m.Generation.BuildHash
	require.NoError(t, m.Stamp(2, "same content, new generation"))
	assert.Equal(t, first, m.Generation.BuildHash)

	m.Packages = append(m.Packages, Package{Name: "orbital", Version: "0.2.0"})
	require.NoError(t, m.Stamp(3, "added a package"))
	assert.NotEqual(t, first, m.Generation.BuildHash)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	m := testManifest(t)
	path := filepath.Join(t.TempDir(), "etc", "redox-system", "manifest.json")
	require.NoError(t, m.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, m.Generation, loaded.Generation)
	assert.Equal(t, m.Packages, loaded.Packages)
	assert.Equal(t, m.Configuration.Boot, loaded.Configuration.Boot)
}

func TestLoadRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"manifestVersion": 99}`), 0644))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version 99")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestConfigRoundtrip(t *testing.T) {
	m := testManifest(t)
	cfg := m.Config()
	assert.Equal(t, m.System.Hostname, cfg.System.Hostname)
	assert.Equal(t, []string{"base", "ion"}, cfg.Packages)
	assert.Equal(t, m.Configuration.Boot, cfg.Boot)
}

func TestInventoryTree(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	write("etc/passwd", "root;0;0;root;/root;/bin/ion\n")
	write("etc/hostname", "redox\n")
	write(Path, `{"manifestVersion":1}`)
	write(GenerationsDir+"/1/manifest.json", `{"manifestVersion":1}`)

	files, err := InventoryTree(root)
	require.NoError(t, err)

	assert.Len(t, files, 2)
	assert.Contains(t, files, "etc/passwd")
	assert.Contains(t, files, "etc/hostname")
	assert.NotContains(t, files, Path)

	info := files["etc/hostname"]
	assert.Equal(t, HashBytes([]byte("redox\n")), info.Blake3)
	assert.Equal(t, int64(6), info.Size)
	assert.Equal(t, "644", info.Mode)
}

// The manifest is read by the guest's own tooling, so the JSON key names are
// load-bearing: redoxSystemVersion, blake3 file hashes, init script names as
// an array.
func TestManifestWireFormat(t *testing.T) {
	m := testManifest(t)
	m.Services.InitScripts = []string{"00_base", "20_services"}
	m.Files["etc/hostname"] = FileInfo{Blake3: "aaa111", Size: 6, Mode: "644"}

	data, err := json.Marshal(m)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `"initScripts":["00_base","20_services"]`)
	assert.Contains(t, text, `"blake3":"aaa111"`)
	assert.Contains(t, text, `"mode":"644"`)

	// Packages keep a plain "version" key; the system section must not.
	sys, err := json.Marshal(m.System)
	require.NoError(t, err)
	assert.Contains(t, string(sys), `"redoxSystemVersion":`)
	assert.NotContains(t, string(sys), `"version":`)
}

func TestVerify(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "etc"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "etc", "hostname"), []byte("redox\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "etc", "timezone"), []byte("UTC\n"), 0644))

	files, err := InventoryTree(root)
	require.NoError(t, err)
	m := &Manifest{ManifestVersion: SchemaVersion, Files: files}

	result, err := m.Verify(root)
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, 2, result.Verified)

	// Tamper with one file, remove another.
	require.NoError(t, os.WriteFile(filepath.Join(root, "etc", "hostname"), []byte("evil\n"), 0644))
	require.NoError(t, os.Remove(filepath.Join(root, "etc", "timezone")))

	result, err = m.Verify(root)
	require.NoError(t, err)
	assert.False(t, result.OK())
	assert.Equal(t, 0, result.Verified)
	assert.Equal(t, []string{"etc/hostname"}, result.Modified)
	assert.Equal(t, []string{"etc/timezone"}, result.Missing)
	assert.Contains(t, result.String(), "1 modified, 1 missing")
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "abc", ShortHash("abc"))
	assert.Equal(t, "0123456789ab", ShortHash("0123456789abcdef0123"))
}
