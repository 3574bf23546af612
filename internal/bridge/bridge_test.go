package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redoxforge/redoxforge/internal/config"
	"github.com/redoxforge/redoxforge/internal/manifest"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func testBuild(ctx context.Context, overlay *config.Overlay) (*manifest.Manifest, error) {
	cfg := config.Defaults()
	overlay.Apply(&cfg)
	if cfg.System.Hostname == "explode" {
		return nil, errors.New("boom")
	}
	m := manifest.New(&cfg)
	if err := m.Stamp(1, "bridge build"); err != nil {
		return nil, err
	}
	return m, nil
}

func startDaemon(t *testing.T, shared string) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{SharedDir: shared, Build: testBuild, Log: quietLogger()}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestRoundTrip(t *testing.T) {
	shared := t.TempDir()
	startDaemon(t, shared)

	c := &Client{SharedDir: shared, Timeout: 10 * time.Second}
	overlay := &config.Overlay{Hostname: strPtr("bridged")}

	resp, err := c.Submit(context.Background(), overlay)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, resp.Status)
	require.NotNil(t, resp.Manifest)
	assert.Equal(t, "bridged", resp.Manifest.System.Hostname)
	assert.GreaterOrEqual(t, resp.BuildTimeMs, int64(0))

	// Both the request and the response are cleaned up.
	reqs, err := os.ReadDir(filepath.Join(shared, RequestsDir))
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestBuildErrorResponse(t *testing.T) {
	shared := t.TempDir()
	startDaemon(t, shared)

	c := &Client{SharedDir: shared, Timeout: 10 * time.Second}
	resp, err := c.Submit(context.Background(), &config.Overlay{Hostname: strPtr("explode")})
	require.NoError(t, err)

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "boom", resp.Error)
	assert.Nil(t, resp.Manifest)
}

func TestInvalidConfigResponse(t *testing.T) {
	shared := t.TempDir()
	startDaemon(t, shared)

	reqDir := filepath.Join(shared, RequestsDir)
	require.NoError(t, os.MkdirAll(reqDir, 0755))
	req := Request{RequestID: "req-bad-config", Config: json.RawMessage(`{"hostnme": "typo"}`)}
	require.NoError(t, writeJSONAtomic(filepath.Join(reqDir, "req-bad-config.json"), req))

	c := &Client{SharedDir: shared, Timeout: 10 * time.Second}
	resp, err := c.await(context.Background(), "req-bad-config")
	require.NoError(t, err)
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "hostnme")
}

func TestLockedRequestSkipped(t *testing.T) {
	shared := t.TempDir()
	reqDir := filepath.Join(shared, RequestsDir)
	require.NoError(t, os.MkdirAll(reqDir, 0755))

	// Another daemon already owns this request.
	req := Request{RequestID: "req-owned", Config: json.RawMessage(`{}`)}
	require.NoError(t, writeJSONAtomic(filepath.Join(reqDir, "req-owned.json"), req))
	require.NoError(t, os.WriteFile(filepath.Join(reqDir, "req-owned.json.lock"), nil, 0644))

	startDaemon(t, shared)
	time.Sleep(1200 * time.Millisecond)

	_, err := os.Stat(filepath.Join(shared, ResponsesDir, "req-owned.json"))
	assert.True(t, os.IsNotExist(err), "locked request must not be processed")
	_, err = os.Stat(filepath.Join(reqDir, "req-owned.json"))
	assert.NoError(t, err, "locked request must stay queued")
}

func TestUnparseableRequestEventuallyDropped(t *testing.T) {
	shared := t.TempDir()
	reqDir := filepath.Join(shared, RequestsDir)
	require.NoError(t, os.MkdirAll(reqDir, 0755))
	garbled := filepath.Join(reqDir, "req-garbled.json")
	require.NoError(t, os.WriteFile(garbled, []byte(`{"requestId": "req-ga`), 0644))

	startDaemon(t, shared)

	require.Eventually(t, func() bool {
		_, err := os.Stat(garbled)
		return os.IsNotExist(err)
	}, 5*time.Second, 100*time.Millisecond)
}

func TestSweepDropsCountersForWithdrawnRequests(t *testing.T) {
	shared := t.TempDir()
	reqDir := filepath.Join(shared, RequestsDir)
	respDir := filepath.Join(shared, ResponsesDir)
	require.NoError(t, os.MkdirAll(reqDir, 0755))
	require.NoError(t, os.MkdirAll(respDir, 0755))

	d := &Daemon{SharedDir: shared, Build: testBuild, Log: quietLogger(), attempts: map[string]int{}}
	half := filepath.Join(reqDir, "req-half.json")
	require.NoError(t, os.WriteFile(half, []byte(`{"requestId": "req-ha`), 0644))

	require.NoError(t, d.sweep(context.Background(), reqDir, respDir))
	assert.Equal(t, 1, d.attempts[half])

	// The client withdraws the request before it ever parses; the retry
	// counter must not outlive it.
	require.NoError(t, os.Remove(half))
	require.NoError(t, d.sweep(context.Background(), reqDir, respDir))
	assert.Empty(t, d.attempts)
}

func TestClientTimeout(t *testing.T) {
	c := &Client{SharedDir: t.TempDir(), Timeout: 1200 * time.Millisecond}
	_, err := c.Submit(context.Background(), &config.Overlay{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func strPtr(s string) *string { return &s }
