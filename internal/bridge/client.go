package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/redoxforge/redoxforge/internal/config"
)

// DefaultTimeout is how long a client waits for a response.
const DefaultTimeout = 300 * time.Second

// Client submits build requests over the shared directory and waits for the
// daemon's responses. It is what a guest-side agent or a protocol test
// drives.
type Client struct {
	SharedDir string
	Timeout   time.Duration
}

// Submit writes a request for the overlay and blocks until the response
// arrives or the timeout passes.
func (c *Client) Submit(ctx context.Context, overlay *config.Overlay) (*Response, error) {
	cfg, err := json.Marshal(overlay)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	id := "req-" + uuid.NewString()
	req := Request{RequestID: id, Config: cfg}

	reqDir := filepath.Join(c.SharedDir, RequestsDir)
	if err := os.MkdirAll(reqDir, 0755); err != nil {
		return nil, fmt.Errorf("creating requests dir: %w", err)
	}
	if err := writeJSONAtomic(filepath.Join(reqDir, id+".json"), req); err != nil {
		return nil, err
	}
	return c.await(ctx, id)
}

// await polls for the response file. Unparseable content is retried: the
// daemon may still be writing when running without atomic renames.
func (c *Client) await(ctx context.Context, id string) (*Response, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	respPath := filepath.Join(c.SharedDir, ResponsesDir, id+".json")
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for response to %s: %w", id, ctx.Err())
		case <-ticker.C:
			data, err := os.ReadFile(respPath)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return nil, fmt.Errorf("reading response: %w", err)
			}
			var resp Response
			if err := json.Unmarshal(data, &resp); err != nil {
				continue
			}
			os.Remove(respPath)
			return &resp, nil
		}
	}
}
