package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/redoxforge/redoxforge/internal/build"
	"github.com/redoxforge/redoxforge/internal/config"
	"github.com/redoxforge/redoxforge/internal/generation"
	"github.com/redoxforge/redoxforge/internal/manifest"
	"github.com/redoxforge/redoxforge/internal/rebuild"
)

func buildCommand(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	cfg, warnings, err := mergeConfig(c, s)
	printWarnings(warnings)
	if err != nil {
		return err
	}

	description := c.String("description")
	if description == "" {
		description = "build from " + c.String("config")
	}

	builder := &build.Builder{Settings: s, Log: newLogger()}
	var result *build.Result
	if c.Bool("manifest-only") {
		result, err = builder.BuildManifest(c.Context, &cfg, description)
	} else {
		result, err = builder.BuildImage(c.Context, &cfg, description)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Generation %d installed (%s)\n",
		result.GenerationID, manifest.ShortHash(result.Manifest.Generation.BuildHash))
	if result.ImagePath != "" {
		fmt.Printf("Image written to %s\n", result.ImagePath)
	}
	return nil
}

func rebuildCommand(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}

	store := generation.NewStore(s.SystemRoot)
	current, err := store.Current()
	if err != nil {
		return fmt.Errorf("rebuild needs an existing system (run build first): %w", err)
	}

	overlay, err := config.LoadOverlay(c.String("config"))
	if err != nil {
		return err
	}
	// Command-line flags win over the file.
	if fo := flagOverlay(c); fo != nil {
		if fo.Hostname != nil {
			overlay.Hostname = fo.Hostname
		}
		if fo.Boot != nil {
			if overlay.Boot == nil {
				overlay.Boot = &config.BootOverlay{}
			}
			if fo.Boot.DiskSizeMB != nil {
				overlay.Boot.DiskSizeMB = fo.Boot.DiskSizeMB
			}
			if fo.Boot.ESPSizeMB != nil {
				overlay.Boot.ESPSizeMB = fo.Boot.ESPSizeMB
			}
		}
	}

	idx, err := rebuild.LoadPackageIndex(s.Artifacts.PackageIndex)
	if err != nil {
		return err
	}
	plan, err := rebuild.Prepare(current, overlay, idx)
	if err != nil {
		return err
	}
	printWarnings(plan.Warnings)

	if !plan.HasChanges() {
		fmt.Println("Nothing to do: configuration matches the current generation")
		return nil
	}

	fmt.Println("Changes:")
	for _, line := range plan.Changes {
		fmt.Println(line)
	}
	if c.Bool("dry-run") {
		fmt.Println("Dry run, nothing applied")
		return nil
	}

	builder := &build.Builder{Settings: s, Log: newLogger()}
	result, err := builder.ApplyPlan(c.Context, plan, "rebuild from "+c.String("config"))
	if err != nil {
		return err
	}
	fmt.Printf("Switched to generation %d\n", result.GenerationID)
	return nil
}

func infoCommand(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	current, err := generation.NewStore(s.SystemRoot).Current()
	if err != nil {
		return err
	}

	g := current.Generation
	fmt.Printf("System:      %s (%s)\n", current.System.Hostname, current.System.Target)
	fmt.Printf("Generation:  %d — %s\n", g.ID, g.Description)
	fmt.Printf("Built:       %s\n", g.Timestamp)
	fmt.Printf("Build hash:  %s\n", manifest.ShortHash(g.BuildHash))
	fmt.Printf("Packages:    %d\n", len(current.Packages))
	fmt.Printf("Drivers:     %s\n", strings.Join(current.Drivers.All, ", "))
	fmt.Printf("Files:       %d tracked\n", len(current.Files))
	return nil
}

func verifyCommand(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	current, err := generation.NewStore(s.SystemRoot).Current()
	if err != nil {
		return err
	}

	result, err := current.Verify(s.SystemRoot)
	if err != nil {
		return err
	}
	fmt.Println(result.String())
	for _, p := range result.Modified {
		fmt.Printf("  modified: %s\n", p)
	}
	for _, p := range result.Missing {
		fmt.Printf("  missing:  %s\n", p)
	}
	if !result.OK() {
		return fmt.Errorf("integrity check failed")
	}
	return nil
}

func diffCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: redoxforge diff <manifest.json | generation-id>")
	}
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	store := generation.NewStore(s.SystemRoot)
	current, err := store.Current()
	if err != nil {
		return err
	}

	arg := c.Args().First()
	var other *manifest.Manifest
	if id, convErr := strconv.ParseUint(arg, 10, 64); convErr == nil {
		other, err = store.Get(id)
	} else {
		other, err = manifest.Load(arg)
	}
	if err != nil {
		return err
	}

	lines := current.Diff(other)
	if len(lines) == 0 {
		fmt.Println("No differences")
		return nil
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}

func listGenerationsCommand(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	rows, warnings, err := generation.NewStore(s.SystemRoot).List()
	printWarnings(warnings)
	if err != nil {
		return err
	}
	fmt.Print(generation.Format(rows))
	return nil
}

func rollbackCommand(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	store := generation.NewStore(s.SystemRoot)
	restored, id, err := store.Rollback(c.Uint64("to"))
	if err != nil {
		return err
	}
	fmt.Printf("Rolled back to the contents of generation described %q\n", restored.Generation.Description)
	fmt.Printf("Now at generation %d\n", id)
	return nil
}
