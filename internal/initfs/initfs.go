// Package initfs stages the early boot tree and archives it with the
// external initfs archiver. The initfs carries only what is needed before
// the root filesystem is mounted: init itself, the storage drivers, and any
// service explicitly wanted this early.
package initfs

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/redoxforge/redoxforge/internal/config"
	"github.com/redoxforge/redoxforge/internal/manifest"
	"github.com/redoxforge/redoxforge/internal/rootfs"
)

// Builder stages and archives the initfs.
type Builder struct {
	Config   *config.Config
	Manifest *manifest.Manifest
	// StoreDir is the package store driver binaries are copied from.
	// Missing binaries are skipped: prebuilt initfs archives commonly
	// carry them already.
	StoreDir string
	// Archiver is the external tool, normally redox-initfs-ar.
	Archiver string
}

// RenderInitRC produces the init script embedded in the initfs: load the
// early drivers, run initfs-wanted services, then hand off to the root
// filesystem.
func RenderInitRC(cfg *config.Config, drivers []string) string {
	var b strings.Builder
	b.WriteString("export PATH /bin\n")
	for _, drv := range drivers {
		fmt.Fprintf(&b, "%s &\n", drv)
		fmt.Fprintf(&b, "waitfor /scheme/%s\n", schemeName(drv))
	}
	for _, name := range sortedServiceNames(cfg.Services) {
		svc := cfg.Services[name]
		if !svc.Enable || svc.WantedBy != config.WantedByInitfs {
			continue
		}
		b.WriteString(rootfs.ServiceInitLine(name, svc))
	}
	b.WriteString("redoxfs /scheme/disk.live file\n")
	b.WriteString("cd file:\n")
	b.WriteString("run.d /etc/init.d\n")
	return b.String()
}

// schemeName strips the conventional "d" daemon suffix to get the scheme a
// driver registers, so virtio-blkd waits on /scheme/virtio-blk.
func schemeName(driver string) string {
	if strings.HasSuffix(driver, "d") && len(driver) > 1 {
		return driver[:len(driver)-1]
	}
	return driver
}

// Stage writes the initfs tree under dest.
func (b *Builder) Stage(dest string) error {
	if err := os.MkdirAll(filepath.Join(dest, "bin"), 0755); err != nil {
		return fmt.Errorf("creating initfs tree: %w", err)
	}

	rc := RenderInitRC(b.Config, b.Manifest.Drivers.Initfs)
	if err := os.WriteFile(filepath.Join(dest, "init.rc"), []byte(rc), 0755); err != nil {
		return fmt.Errorf("writing init.rc: %w", err)
	}

	if b.StoreDir == "" {
		return nil
	}
	binaries := append([]string{"init", "redoxfs"}, b.Manifest.Drivers.Initfs...)
	for _, name := range binaries {
		src := filepath.Join(b.StoreDir, "initfs", name)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		if err := copyFile(src, filepath.Join(dest, "bin", name)); err != nil {
			return fmt.Errorf("copying %s into initfs: %w", name, err)
		}
	}
	return nil
}

// Build stages the tree and runs the archiver, producing the initfs image
// at out. Archiver failure aborts the build with its output.
func (b *Builder) Build(ctx context.Context, out string) error {
	stage, err := os.MkdirTemp("", "redoxforge-initfs-*")
	if err != nil {
		return fmt.Errorf("creating initfs stage: %w", err)
	}
	defer os.RemoveAll(stage)

	if err := b.Stage(stage); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, b.Archiver, stage, out)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s %s: %w\n%s",
			b.Archiver, stage, out, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func copyFile(src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0755)
}

func sortedServiceNames(m map[string]config.Service) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
