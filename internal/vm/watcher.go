package vm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// pollInterval is how often the serial log is re-read.
const pollInterval = 500 * time.Millisecond

// tailLines is how much console output a timeout report carries.
const tailLines = 15

// Milestone is one marker string expected on the serial console. Milestones
// are ordered: each must appear at or after the previous one's position.
type Milestone struct {
	Name   string
	Marker string
}

// BootMilestones is the standard boot sequence.
var BootMilestones = []Milestone{
	{Name: "bootloader", Marker: "Redox OS Bootloader"},
	{Name: "kernel", Marker: "Redox OS starting"},
	{Name: "boot-complete", Marker: "Boot Complete"},
	{Name: "shell", Marker: "ion>"},
}

// Reached records when a milestone showed up.
type Reached struct {
	Name    string
	Elapsed time.Duration
}

// WatchResult is the outcome of a watch, complete or not. On timeout the
// missing milestone and the console tail describe how far boot got.
type WatchResult struct {
	Reached   []Reached
	TimedOut  bool
	NextWant  string
	TailLines []string
}

// Complete reports whether every milestone appeared.
func (r *WatchResult) Complete() bool {
	return !r.TimedOut
}

// Watcher polls a serial log file for ordered milestones.
type Watcher struct {
	LogPath    string
	Milestones []Milestone
	Log        *log.Logger
}

// Watch blocks until every milestone appears in order or ctx expires. The
// returned result is valid in both cases; err is non-nil only for real
// failures, a timeout is reported through the result.
func (w *Watcher) Watch(ctx context.Context) (*WatchResult, error) {
	start := time.Now()
	result := &WatchResult{}
	next := 0
	searchFrom := 0

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		content, err := os.ReadFile(w.LogPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading serial log: %w", err)
		}
		text := string(content)

		for next < len(w.Milestones) {
			idx := strings.Index(text[min(searchFrom, len(text)):], w.Milestones[next].Marker)
			if idx < 0 {
				break
			}
			searchFrom = min(searchFrom, len(text)) + idx + len(w.Milestones[next].Marker)
			elapsed := time.Since(start)
			result.Reached = append(result.Reached, Reached{Name: w.Milestones[next].Name, Elapsed: elapsed})
			if w.Log != nil {
				w.Log.Info("milestone reached", "name", w.Milestones[next].Name, "elapsed", elapsed.Round(time.Millisecond))
			}
			next++
		}
		if next >= len(w.Milestones) {
			return result, nil
		}

		select {
		case <-ctx.Done():
			result.TimedOut = true
			result.NextWant = w.Milestones[next].Name
			result.TailLines = tail(text, tailLines)
			return result, nil
		case <-ticker.C:
		}
	}
}

// tail returns the last n non-empty lines of text.
func tail(text string, n int) []string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	var kept []string
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return kept
}

// Timeline renders the reached milestones as display lines.
func (r *WatchResult) Timeline() []string {
	out := make([]string, 0, len(r.Reached)+1)
	for _, m := range r.Reached {
		out = append(out, fmt.Sprintf("  %-15s %8s", m.Name, m.Elapsed.Round(time.Millisecond)))
	}
	if r.TimedOut {
		out = append(out, fmt.Sprintf("  %-15s timed out", r.NextWant))
	}
	return out
}
