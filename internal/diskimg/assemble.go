package diskimg

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/redoxforge/redoxforge/internal/settings"
)

// Assembler builds the disk image from prebuilt inputs. Every step shells
// out to an external tool; the first failure aborts with that tool's
// captured output.
type Assembler struct {
	Layout Layout
	Tools  settings.Tools

	Kernel        string
	Bootloader    string
	InitfsImage   string
	RootDir       string
	StartupScript string

	// Scratch holds the intermediate partition images. Empty means a
	// temporary directory that is removed afterwards.
	Scratch string

	Log *log.Logger
}

func (a *Assembler) logf(msg string, kv ...any) {
	if a.Log != nil {
		a.Log.Info(msg, kv...)
	}
}

// Assemble produces the final image at dest.
func (a *Assembler) Assemble(ctx context.Context, dest string) error {
	if err := a.Layout.Validate(); err != nil {
		return err
	}
	for _, input := range []struct{ label, path string }{
		{"kernel", a.Kernel},
		{"bootloader", a.Bootloader},
		{"initfs image", a.InitfsImage},
		{"root tree", a.RootDir},
	} {
		if _, err := os.Stat(input.path); err != nil {
			return fmt.Errorf("%s: %w", input.label, err)
		}
	}

	scratch := a.Scratch
	if scratch == "" {
		dir, err := os.MkdirTemp("", "redoxforge-img-*")
		if err != nil {
			return fmt.Errorf("creating scratch dir: %w", err)
		}
		defer os.RemoveAll(dir)
		scratch = dir
	}

	imagePath := filepath.Join(scratch, "disk.img")
	if err := createSparse(imagePath, a.Layout.DiskSizeBytes()); err != nil {
		return err
	}

	a.logf("writing partition table", "disk_mb", a.Layout.DiskSizeMB, "esp_mb", a.Layout.ESPSizeMB)
	if err := a.run(ctx, a.Tools.Sgdisk, a.Layout.SgdiskArgs(imagePath)...); err != nil {
		return err
	}

	espImage := filepath.Join(scratch, "esp.img")
	if err := a.buildESP(ctx, espImage); err != nil {
		return err
	}

	rootImage := filepath.Join(scratch, "root.img")
	a.logf("building root filesystem", "source", a.RootDir)
	if err := createSparse(rootImage, a.Layout.RootSizeBytes()); err != nil {
		return err
	}
	if err := a.run(ctx, a.Tools.RedoxFS, rootImage, a.RootDir); err != nil {
		return err
	}

	a.logf("writing partitions into image")
	if err := a.ddInto(ctx, espImage, imagePath, a.Layout.ESPOffsetBytes()); err != nil {
		return err
	}
	if err := a.ddInto(ctx, rootImage, imagePath, a.Layout.RootOffsetBytes()); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	if err := moveFile(imagePath, dest); err != nil {
		return fmt.Errorf("moving image: %w", err)
	}
	a.logf("image ready", "path", dest)
	return nil
}

// moveFile renames, falling back to copy when source and destination are on
// different filesystems.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// buildESP formats a FAT32 image and populates the EFI boot tree.
func (a *Assembler) buildESP(ctx context.Context, espImage string) error {
	a.logf("building EFI system partition", "size_mb", a.Layout.ESPSizeMB)
	if err := createSparse(espImage, a.Layout.ESPSizeBytes()); err != nil {
		return err
	}
	if err := a.run(ctx, a.Tools.MkfsVfat, "-F", "32", espImage); err != nil {
		return err
	}
	if err := a.run(ctx, a.Tools.Mmd, "-i", espImage, "::/EFI", "::/EFI/BOOT"); err != nil {
		return err
	}

	startup := filepath.Join(filepath.Dir(espImage), "startup.nsh")
	if err := os.WriteFile(startup, []byte(a.StartupScript), 0644); err != nil {
		return fmt.Errorf("writing startup.nsh: %w", err)
	}

	for _, cp := range []struct{ src, dst string }{
		{a.Bootloader, "::/EFI/BOOT/BOOTX64.EFI"},
		{a.Kernel, "::/EFI/BOOT/kernel"},
		{a.InitfsImage, "::/EFI/BOOT/initfs"},
		{startup, "::/startup.nsh"},
	} {
		if err := a.run(ctx, a.Tools.Mcopy, "-i", espImage, cp.src, cp.dst); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assembler) ddInto(ctx context.Context, src, image string, offset int64) error {
	if offset%mib != 0 {
		return fmt.Errorf("partition offset %d is not MiB-aligned", offset)
	}
	return a.run(ctx, "dd",
		"if="+src,
		"of="+image,
		fmt.Sprintf("bs=%d", mib),
		fmt.Sprintf("seek=%d", offset/mib),
		"conv=notrunc")
}

func (a *Assembler) run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w\n%s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

func createSparse(path string, size int64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return fmt.Errorf("sizing %s: %w", path, err)
	}
	return f.Close()
}
