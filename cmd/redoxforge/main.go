package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v2"

	"github.com/redoxforge/redoxforge/internal/config"
	"github.com/redoxforge/redoxforge/internal/scaffold"
	"github.com/redoxforge/redoxforge/internal/settings"
)

// exitWithError prints an error message and exits with the given code,
// avoiding the cli.Exit wrapper's extra formatting.
func exitWithError(message string, code int) error {
	fmt.Fprintln(os.Stderr, message)
	os.Exit(code)
	return nil // never reached
}

func newLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		exitWithError("Error: "+err.Error(), 1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "redoxforge",
		Usage:   "declarative RedoxOS image building and system management",
		Version: config.Version,
		Description: `Redoxforge renders a declarative system configuration into a bootable
   RedoxOS disk image, tracks every build as a numbered generation, and can
   boot the result under QEMU or Cloud Hypervisor to verify it.`,
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Create a starter system.hcl and forge.toml in the current directory",
				Action: initCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "hostname", Value: "redox", Usage: "initial hostname"},
					&cli.StringFlag{Name: "profile", Value: "minimal", Usage: "base profile (minimal, server, desktop)"},
				},
			},
			{
				Name:   "validate",
				Usage:  "Merge and validate the configuration without building anything",
				Action: validateCommand,
				Flags:  configFlags(),
			},
			{
				Name:   "build",
				Usage:  "Build the full disk image from the configuration",
				Action: buildCommand,
				Flags: append(configFlags(),
					&cli.StringFlag{Name: "description", Aliases: []string{"m"}, Usage: "generation description"},
					&cli.BoolFlag{Name: "manifest-only", Usage: "stage the root tree and manifest, skip initfs and disk image"},
				),
			},
			{
				Name:   "rebuild",
				Usage:  "Merge the configuration over the current manifest and switch to it",
				Action: rebuildCommand,
				Flags: append(configFlags(),
					&cli.BoolFlag{Name: "dry-run", Usage: "show the change summary and stop"},
				),
			},
			{
				Name:   "info",
				Usage:  "Show the current generation and system summary",
				Action: infoCommand,
				Flags:  []cli.Flag{settingsFlag()},
			},
			{
				Name:   "verify",
				Usage:  "Re-hash every tracked file and report integrity",
				Action: verifyCommand,
				Flags:  []cli.Flag{settingsFlag()},
			},
			{
				Name:      "diff",
				Usage:     "Compare the current manifest against another manifest or generation",
				ArgsUsage: "<manifest.json | generation-id>",
				Action:    diffCommand,
				Flags:     []cli.Flag{settingsFlag()},
			},
			{
				Name:    "list-generations",
				Aliases: []string{"generations"},
				Usage:   "List stored generations",
				Action:  listGenerationsCommand,
				Flags:   []cli.Flag{settingsFlag()},
			},
			{
				Name:   "rollback",
				Usage:  "Re-activate an older generation as a new one",
				Action: rollbackCommand,
				Flags: []cli.Flag{
					settingsFlag(),
					&cli.Uint64Flag{Name: "to", Usage: "generation id to roll back to (default: the previous one)"},
				},
			},
			{
				Name:   "boot-test",
				Usage:  "Boot the built image and watch for the boot milestones",
				Action: bootTestCommand,
				Flags: []cli.Flag{
					settingsFlag(),
					&cli.BoolFlag{Name: "qemu", Usage: "use QEMU (the default)"},
					&cli.BoolFlag{Name: "ch", Usage: "use Cloud Hypervisor"},
					&cli.DurationFlag{Name: "timeout", Usage: "overall boot deadline"},
					&cli.BoolFlag{Name: "verbose", Usage: "log each milestone as it is reached"},
				},
			},
			{
				Name:   "func-test",
				Usage:  "Boot the image and evaluate the guest's functional test protocol",
				Action: funcTestCommand,
				Flags: []cli.Flag{
					settingsFlag(),
					&cli.BoolFlag{Name: "qemu", Usage: "use QEMU (the default)"},
					&cli.BoolFlag{Name: "ch", Usage: "use Cloud Hypervisor"},
					&cli.StringFlag{Name: "scenario", Usage: "YAML scenario with expected tests"},
					&cli.DurationFlag{Name: "timeout", Usage: "overall deadline"},
				},
			},
			{
				Name:   "bridge",
				Usage:  "Run the host-side build bridge daemon",
				Action: bridgeCommand,
				Flags: []cli.Flag{
					settingsFlag(),
					&cli.StringFlag{Name: "shared", Required: true, Usage: "shared directory for requests and responses"},
				},
			},
		},
	}
}

func settingsFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "settings",
		Aliases: []string{"s"},
		Value:   settings.DefaultFile,
		Usage:   "tool settings file",
	}
}

func configFileFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "system.hcl",
		Usage:   "declarative system configuration file",
	}
}

// configFlags are the flags of every command that merges a configuration:
// the input files plus the overrides applied as the top merge layer.
func configFlags() []cli.Flag {
	return []cli.Flag{
		settingsFlag(),
		configFileFlag(),
		&cli.StringFlag{Name: "profile", Usage: "override the base profile"},
		&cli.StringFlag{Name: "hostname", Usage: "override the hostname"},
		&cli.IntFlag{Name: "disk-size", Usage: "override the disk size in MiB"},
		&cli.IntFlag{Name: "esp-size", Usage: "override the ESP size in MiB"},
	}
}

func loadSettings(c *cli.Context) (settings.Settings, error) {
	return settings.Load(c.String("settings"))
}

// flagOverlay captures command-line overrides as the final config layer.
func flagOverlay(c *cli.Context) *config.Overlay {
	overlay := &config.Overlay{}
	touched := false
	if c.IsSet("hostname") {
		hostname := c.String("hostname")
		overlay.Hostname = &hostname
		touched = true
	}
	if c.IsSet("disk-size") || c.IsSet("esp-size") {
		overlay.Boot = &config.BootOverlay{}
		if c.IsSet("disk-size") {
			v := c.Int("disk-size")
			overlay.Boot.DiskSizeMB = &v
		}
		if c.IsSet("esp-size") {
			v := c.Int("esp-size")
			overlay.Boot.ESPSizeMB = &v
		}
		touched = true
	}
	if !touched {
		return nil
	}
	return overlay
}

// mergeConfig builds the layered configuration: defaults, profile, the
// user's file if it exists, then flag overrides.
func mergeConfig(c *cli.Context, s settings.Settings) (config.Config, []string, error) {
	profile := s.Profile
	if c.IsSet("profile") {
		profile = c.String("profile")
	}

	b := config.NewBuilder().WithProfile(profile)
	path := c.String("config")
	if _, err := os.Stat(path); err == nil {
		b = b.WithFile(path)
	} else if c.IsSet("config") {
		return config.Config{}, nil, fmt.Errorf("config file %s: %w", path, err)
	}
	b = b.WithOverlay("flags", flagOverlay(c))

	cfg, warnings, err := b.Build()
	if err != nil {
		return config.Config{}, warnings, err
	}
	return cfg, warnings, nil
}

func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Printf("warning: %s\n", w)
	}
}

func initCommand(c *cli.Context) error {
	opts := scaffold.Options{
		Hostname: c.String("hostname"),
		Profile:  c.String("profile"),
	}
	if err := scaffold.Create(opts); err != nil {
		return err
	}
	fmt.Println("Created system.hcl and forge.toml")
	fmt.Println("Edit system.hcl, then run: redoxforge build")
	return nil
}

func validateCommand(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	cfg, warnings, err := mergeConfig(c, s)
	printWarnings(warnings)
	if err != nil {
		return err
	}

	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  hostname: %s\n", cfg.System.Hostname)
	fmt.Printf("  profile:  %s\n", cfg.System.Profile)
	fmt.Printf("  disk:     %d MiB (ESP %d MiB)\n", cfg.Boot.DiskSizeMB, cfg.Boot.ESPSizeMB)
	fmt.Printf("  packages: %d\n", len(cfg.Packages))
	fmt.Printf("  users:    %s\n", strings.Join(userNames(cfg), ", "))
	return nil
}

func userNames(cfg config.Config) []string {
	names := make([]string, 0, len(cfg.Users))
	for name := range cfg.Users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
