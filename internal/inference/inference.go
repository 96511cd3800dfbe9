// Package inference defines the single-method capability boundary between
// the pipelines and whatever produces structured analyses: the network-backed
// GenAI client or a deterministic stub. The two are interchangeable without
// touching pipeline logic.
package inference

import (
	"context"
	"encoding/json"
)

// Request describes one inference call. Immutable once constructed.
type Request struct {
	SystemPrompt   string
	UserPrompt     string
	Temperature    float64
	ResponseSchema json.RawMessage // optional JSON schema constraining the output
	CallerLabel    string          // identifies the requesting agent; also the prompt-cache key
}

// Metadata describes how a result was produced.
type Metadata struct {
	Model       string `json:"model"`
	DurationMS  int64  `json:"duration_ms"`
	Cached      bool   `json:"cached"`
	CallerLabel string `json:"caller_label"`
}

// Result is a successful inference outcome. Data holds the raw model output,
// JSON-shaped when a ResponseSchema was supplied.
type Result struct {
	Data     json.RawMessage
	Metadata Metadata
}

// Caller is the capability interface. Implementations must be safe for
// concurrent use.
type Caller interface {
	Call(ctx context.Context, req *Request) (*Result, error)
}
