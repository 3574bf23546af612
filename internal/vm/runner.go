package vm

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultBootTimeout bounds how long a boot test waits for all milestones.
const DefaultBootTimeout = 120 * time.Second

// Runner boots an image and watches its serial console. The VM process is
// killed on every exit path.
type Runner struct {
	Options    Options
	Milestones []Milestone
	Timeout    time.Duration
	Log        *log.Logger
}

// Run launches the VM, watches for the milestones, then tears the VM down.
func (r *Runner) Run(ctx context.Context) (*WatchResult, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultBootTimeout
	}
	milestones := r.Milestones
	if len(milestones) == 0 {
		milestones = BootMilestones
	}

	// Truncate any stale log so old output cannot satisfy a milestone.
	if err := os.WriteFile(r.Options.SerialLog, nil, 0644); err != nil {
		return nil, fmt.Errorf("preparing serial log: %w", err)
	}

	cmd, err := Command(r.Options)
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", cmd.Path, err)
	}
	defer func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		_ = cmd.Wait()
	}()

	if r.Log != nil {
		r.Log.Info("vm started", "backend", string(r.Options.Backend), "pid", cmd.Process.Pid, "timeout", timeout)
	}

	watchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	w := &Watcher{LogPath: r.Options.SerialLog, Milestones: milestones, Log: r.Log}
	return w.Watch(watchCtx)
}
