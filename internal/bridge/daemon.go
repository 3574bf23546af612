package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/redoxforge/redoxforge/internal/config"
	"github.com/redoxforge/redoxforge/internal/manifest"
)

// pollInterval is how often the requests directory is re-scanned.
const pollInterval = 500 * time.Millisecond

// maxParseAttempts bounds how many polls a request may fail to parse before
// it is answered with an error and dropped. Fresh requests can legitimately
// be half-written on the first read.
const maxParseAttempts = 3

// BuildFunc turns an override configuration into a built manifest.
type BuildFunc func(ctx context.Context, overlay *config.Overlay) (*manifest.Manifest, error)

// Daemon watches a shared directory for build requests.
type Daemon struct {
	SharedDir string
	Build     BuildFunc
	Log       *log.Logger

	attempts map[string]int
}

// Run processes requests until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	reqDir := filepath.Join(d.SharedDir, RequestsDir)
	respDir := filepath.Join(d.SharedDir, ResponsesDir)
	for _, dir := range []string{reqDir, respDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating bridge dir: %w", err)
		}
	}
	d.attempts = map[string]int{}

	d.Log.Info("bridge daemon started", "shared", d.SharedDir)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.Log.Info("bridge daemon stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := d.sweep(ctx, reqDir, respDir); err != nil {
				d.Log.Error("request sweep failed", "err", err)
			}
		}
	}
}

// sweep handles every pending request file once.
func (d *Daemon) sweep(ctx context.Context, reqDir, respDir string) error {
	entries, err := os.ReadDir(reqDir)
	if err != nil {
		return fmt.Errorf("reading requests dir: %w", err)
	}
	present := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		path := filepath.Join(reqDir, name)
		present[path] = true
		d.handle(ctx, path, respDir)
	}
	// A request withdrawn by its client mid-retry must not leave its parse
	// counter behind in a long-lived daemon.
	for path := range d.attempts {
		if !present[path] {
			delete(d.attempts, path)
		}
	}
	return nil
}

func (d *Daemon) handle(ctx context.Context, reqPath, respDir string) {
	// A lock sentinel next to the request keeps concurrent daemons from
	// double-building. Whoever creates it owns the request.
	lockPath := reqPath + ".lock"
	lock, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return
		}
		d.Log.Error("taking request lock", "request", reqPath, "err", err)
		return
	}
	lock.Close()
	defer os.Remove(lockPath)

	data, err := os.ReadFile(reqPath)
	if err != nil {
		d.Log.Error("reading request", "request", reqPath, "err", err)
		return
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil || req.RequestID == "" {
		// Possibly still being written; retry on later sweeps, then drop.
		d.attempts[reqPath]++
		if d.attempts[reqPath] < maxParseAttempts {
			return
		}
		delete(d.attempts, reqPath)
		d.Log.Warn("dropping unparseable request", "request", reqPath)
		os.Remove(reqPath)
		return
	}
	delete(d.attempts, reqPath)

	d.Log.Info("processing request", "id", req.RequestID)
	resp := d.process(ctx, &req)

	if err := writeJSONAtomic(filepath.Join(respDir, req.RequestID+".json"), resp); err != nil {
		d.Log.Error("writing response", "id", req.RequestID, "err", err)
		return
	}
	if err := os.Remove(reqPath); err != nil {
		d.Log.Error("removing request", "id", req.RequestID, "err", err)
	}
	d.Log.Info("request done", "id", req.RequestID, "status", resp.Status, "build_ms", resp.BuildTimeMs)
}

func (d *Daemon) process(ctx context.Context, req *Request) *Response {
	overlay, err := config.ParseJSONOverlay(req.Config)
	if err != nil {
		return &Response{Status: StatusError, RequestID: req.RequestID, Error: err.Error()}
	}

	start := time.Now()
	m, err := d.Build(ctx, overlay)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return &Response{Status: StatusError, RequestID: req.RequestID, Error: err.Error()}
	}
	return &Response{
		Status:      StatusSuccess,
		RequestID:   req.RequestID,
		Manifest:    m,
		BuildTimeMs: elapsed,
	}
}

// writeJSONAtomic writes to a temp file and renames it into place, so a
// polling reader never sees a half-written document.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publishing %s: %w", path, err)
	}
	return nil
}
