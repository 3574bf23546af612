// Package build orchestrates a full image build: package resolution, root
// tree staging, generation switch, initfs archiving and disk image
// assembly.
package build

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/redoxforge/redoxforge/internal/config"
	"github.com/redoxforge/redoxforge/internal/diskimg"
	"github.com/redoxforge/redoxforge/internal/generation"
	"github.com/redoxforge/redoxforge/internal/initfs"
	"github.com/redoxforge/redoxforge/internal/manifest"
	"github.com/redoxforge/redoxforge/internal/rebuild"
	"github.com/redoxforge/redoxforge/internal/rootfs"
	"github.com/redoxforge/redoxforge/internal/settings"
)

// Builder runs build pipelines against one settings set.
type Builder struct {
	Settings settings.Settings
	Log      *log.Logger
}

// Result is what a completed pipeline produced.
type Result struct {
	Manifest     *manifest.Manifest
	GenerationID uint64
	ImagePath    string
	Warnings     []string
}

// BuildManifest stages the root tree for cfg and installs it as a new
// generation, without producing a disk image. This is the build the bridge
// daemon runs.
func (b *Builder) BuildManifest(ctx context.Context, cfg *config.Config, description string) (*Result, error) {
	m := manifest.New(cfg)

	idx, err := rebuild.LoadPackageIndex(b.Settings.Artifacts.PackageIndex)
	if err != nil {
		return nil, err
	}
	packages, warnings := idx.Resolve(cfg.Packages)
	m.Packages = packages
	for _, w := range warnings {
		b.Log.Warn(w)
	}

	root := b.Settings.SystemRoot
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating system root: %w", err)
	}

	b.Log.Info("staging root tree", "dest", root)
	stager := &rootfs.Stager{Config: cfg, Manifest: m, StoreDir: b.Settings.Artifacts.StoreDir}
	if err := stager.Stage(root); err != nil {
		return nil, err
	}

	store := generation.NewStore(root)
	id, err := store.Switch(m, description)
	if err != nil {
		return nil, err
	}
	b.Log.Info("generation installed", "id", id, "hash", manifest.ShortHash(m.Generation.BuildHash))

	return &Result{Manifest: m, GenerationID: id, Warnings: warnings}, nil
}

// BuildImage runs the whole pipeline: manifest build, initfs archive, disk
// image.
func (b *Builder) BuildImage(ctx context.Context, cfg *config.Config, description string) (*Result, error) {
	result, err := b.BuildManifest(ctx, cfg, description)
	if err != nil {
		return nil, err
	}

	b.Log.Info("building initfs", "out", b.Settings.InitfsPath())
	ib := &initfs.Builder{
		Config:   cfg,
		Manifest: result.Manifest,
		StoreDir: b.Settings.Artifacts.StoreDir,
		Archiver: b.Settings.Tools.InitFS,
	}
	if err := ib.Build(ctx, b.Settings.InitfsPath()); err != nil {
		return nil, err
	}

	assembler := &diskimg.Assembler{
		Layout: diskimg.Layout{
			DiskSizeMB: cfg.Boot.DiskSizeMB,
			ESPSizeMB:  cfg.Boot.ESPSizeMB,
		},
		Tools:         b.Settings.Tools,
		Kernel:        b.Settings.Artifacts.Kernel,
		Bootloader:    b.Settings.Artifacts.Bootloader,
		InitfsImage:   b.Settings.InitfsPath(),
		RootDir:       b.Settings.SystemRoot,
		StartupScript: result.Manifest.Services.StartupScript,
		Log:           b.Log,
	}
	if err := assembler.Assemble(ctx, b.Settings.ImagePath()); err != nil {
		return nil, err
	}

	result.ImagePath = b.Settings.ImagePath()
	return result, nil
}

// ApplyPlan installs a prepared rebuild plan as a new generation by
// restaging the root tree from the plan's merged configuration.
func (b *Builder) ApplyPlan(ctx context.Context, plan *rebuild.Plan, description string) (*Result, error) {
	cfg := plan.New.Config()
	result, err := b.BuildManifest(ctx, &cfg, description)
	if err != nil {
		return nil, err
	}
	result.Warnings = append(plan.Warnings, result.Warnings...)
	return result, nil
}
