package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/redoxforge/redoxforge/internal/bridge"
	"github.com/redoxforge/redoxforge/internal/build"
	"github.com/redoxforge/redoxforge/internal/config"
	"github.com/redoxforge/redoxforge/internal/generation"
	"github.com/redoxforge/redoxforge/internal/manifest"
	"github.com/redoxforge/redoxforge/internal/settings"
	"github.com/redoxforge/redoxforge/internal/vm"
)

func selectBackend(c *cli.Context) (vm.Backend, error) {
	if c.Bool("qemu") && c.Bool("ch") {
		return "", fmt.Errorf("--qemu and --ch are mutually exclusive")
	}
	if c.Bool("ch") {
		return vm.BackendCloudHypervisor, nil
	}
	return vm.BackendQEMU, nil
}

func vmOptions(c *cli.Context, s settings.Settings) (vm.Options, error) {
	backend, err := selectBackend(c)
	if err != nil {
		return vm.Options{}, err
	}
	image := s.ImagePath()
	if _, err := os.Stat(image); err != nil {
		return vm.Options{}, fmt.Errorf("no image at %s (run build first): %w", image, err)
	}

	hostname := "redox"
	if current, err := generation.NewStore(s.SystemRoot).Current(); err == nil {
		hostname = current.System.Hostname
	}

	return vm.Options{
		Backend:   backend,
		Image:     image,
		SerialLog: filepath.Join(s.OutputDir, "serial.log"),
		Hostname:  hostname,
		Settings:  s.VM,
	}, nil
}

func bootTestCommand(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	opts, err := vmOptions(c, s)
	if err != nil {
		return err
	}

	runner := &vm.Runner{
		Options: opts,
		Timeout: c.Duration("timeout"),
	}
	if c.Bool("verbose") {
		runner.Log = newLogger()
	}

	result, err := runner.Run(c.Context)
	if err != nil {
		return err
	}

	fmt.Println("Boot milestones:")
	for _, line := range result.Timeline() {
		fmt.Println(line)
	}
	if result.TimedOut {
		fmt.Println("\nLast console output:")
		for _, line := range result.TailLines {
			fmt.Printf("  %s\n", line)
		}
		return fmt.Errorf("boot did not reach %q", result.NextWant)
	}
	fmt.Println("Boot OK")
	return nil
}

func funcTestCommand(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	opts, err := vmOptions(c, s)
	if err != nil {
		return err
	}

	timeout := c.Duration("timeout")
	var scenario *vm.Scenario
	if path := c.String("scenario"); path != "" {
		scenario, err = vm.LoadScenario(path)
		if err != nil {
			return err
		}
		if timeout == 0 && scenario.TimeoutSeconds > 0 {
			timeout = time.Duration(scenario.TimeoutSeconds) * time.Second
		}
	}

	// Boot until the guest reports the test run finished, then read the
	// whole console back for parsing.
	milestones := append(append([]vm.Milestone{}, vm.BootMilestones[:3]...),
		vm.Milestone{Name: "func-tests", Marker: "FUNC_TESTS_COMPLETE"})

	runner := &vm.Runner{
		Options:    opts,
		Milestones: milestones,
		Timeout:    timeout,
		Log:        newLogger(),
	}
	result, err := runner.Run(c.Context)
	if err != nil {
		return err
	}
	if result.TimedOut {
		for _, line := range result.TailLines {
			fmt.Printf("  %s\n", line)
		}
		return fmt.Errorf("functional tests did not complete (stuck before %q)", result.NextWant)
	}

	console, err := os.ReadFile(opts.SerialLog)
	if err != nil {
		return fmt.Errorf("reading console log: %w", err)
	}
	report := vm.ParseFuncTests(string(console))

	passed, failed, skipped := report.Counts()
	for _, t := range report.Results {
		switch t.Status {
		case vm.StatusFail:
			fmt.Printf("  FAIL %s: %s\n", t.Name, t.Reason)
		default:
			fmt.Printf("  %s %s\n", t.Status, t.Name)
		}
	}
	fmt.Printf("%d passed, %d failed, %d skipped\n", passed, failed, skipped)

	if scenario != nil {
		if missing := report.Missing(scenario.Expect); len(missing) > 0 {
			return fmt.Errorf("expected tests never ran: %v", missing)
		}
	}
	if !report.Passed() {
		return fmt.Errorf("functional tests failed")
	}
	return nil
}

func bridgeCommand(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	logger := newLogger()
	builder := &build.Builder{Settings: s, Log: logger}

	daemon := &bridge.Daemon{
		SharedDir: c.String("shared"),
		Log:       logger,
		Build: func(ctx context.Context, overlay *config.Overlay) (*manifest.Manifest, error) {
			store := generation.NewStore(s.SystemRoot)
			current, err := store.Current()
			if err == nil {
				cfg := current.Config()
				overlay.Apply(&cfg)
				if _, err := config.Validate(&cfg); err != nil {
					return nil, err
				}
				result, err := builder.BuildManifest(ctx, &cfg, "bridge rebuild")
				if err != nil {
					return nil, err
				}
				return result.Manifest, nil
			}

			// No system yet: build from defaults plus the overlay.
			cfg, _, err := config.NewBuilder().WithOverlay("bridge", overlay).Build()
			if err != nil {
				return nil, err
			}
			result, err := builder.BuildManifest(ctx, &cfg, "bridge build")
			if err != nil {
				return nil, err
			}
			return result.Manifest, nil
		},
	}

	if err := daemon.Run(c.Context); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
