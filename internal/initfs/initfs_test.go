package initfs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redoxforge/redoxforge/internal/config"
	"github.com/redoxforge/redoxforge/internal/manifest"
)

func TestRenderInitRC(t *testing.T) {
	cfg := config.Defaults()
	cfg.Services = map[string]config.Service{
		"early": {Command: "/bin/early", Type: config.ServiceOneshot, WantedBy: config.WantedByInitfs, Enable: true},
		"late":  {Command: "/bin/late", Type: config.ServiceDaemon, WantedBy: config.WantedByRootfs, Enable: true},
	}

	rc := RenderInitRC(&cfg, []string{"virtio-blkd", "ahcid"})

	assert.Contains(t, rc, "virtio-blkd &\nwaitfor /scheme/virtio-blk\n")
	assert.Contains(t, rc, "ahcid &\nwaitfor /scheme/ahci\n")
	assert.Contains(t, rc, "/bin/early\n")
	assert.NotContains(t, rc, "/bin/late")
	// Hand-off to the root filesystem comes last.
	assert.True(t, strings.HasSuffix(rc, "redoxfs /scheme/disk.live file\ncd file:\nrun.d /etc/init.d\n"))
}

func TestSchemeName(t *testing.T) {
	assert.Equal(t, "virtio-blk", schemeName("virtio-blkd"))
	assert.Equal(t, "nvme", schemeName("nvmed"))
	assert.Equal(t, "x", schemeName("x"))
}

func TestStageWritesInitRC(t *testing.T) {
	cfg := config.Defaults()
	m := manifest.New(&cfg)
	dest := t.TempDir()

	b := &Builder{Config: &cfg, Manifest: m}
	require.NoError(t, b.Stage(dest))

	data, err := os.ReadFile(filepath.Join(dest, "init.rc"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "export PATH /bin")
}

func TestStageCopiesAvailableBinaries(t *testing.T) {
	store := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(store, "initfs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(store, "initfs", "init"), []byte("init-bin"), 0755))
	// virtio-blkd et al deliberately absent.

	cfg := config.Defaults()
	m := manifest.New(&cfg)
	dest := t.TempDir()

	b := &Builder{Config: &cfg, Manifest: m, StoreDir: store}
	require.NoError(t, b.Stage(dest))

	data, err := os.ReadFile(filepath.Join(dest, "bin", "init"))
	require.NoError(t, err)
	assert.Equal(t, "init-bin", string(data))

	_, err = os.Stat(filepath.Join(dest, "bin", "virtio-blkd"))
	assert.True(t, os.IsNotExist(err))
}
