// Package bridge implements the file-based build protocol: a guest (or any
// other client) drops request documents into a shared directory and the
// host daemon answers with built manifests.
package bridge

import (
	"encoding/json"

	"github.com/redoxforge/redoxforge/internal/manifest"
)

// Directory names inside the shared directory.
const (
	RequestsDir  = "requests"
	ResponsesDir = "responses"
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Request asks the host to build a system from an override configuration.
// Config has the overlay document shape; it is kept raw here so a request
// with a bad config still yields a parseable request id to answer with.
type Request struct {
	RequestID string          `json:"requestId"`
	Config    json.RawMessage `json:"config"`
}

// Response is the host's answer, named after the request id.
type Response struct {
	Status      string             `json:"status"`
	RequestID   string             `json:"requestId"`
	Manifest    *manifest.Manifest `json:"manifest,omitempty"`
	Error       string             `json:"error,omitempty"`
	BuildTimeMs int64              `json:"buildTimeMs,omitempty"`
}
