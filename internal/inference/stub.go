// internal/inference/stub.go
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	cperrors "carepath/internal/common/errors"
)

// Responder computes a deterministic response body for a request.
type Responder func(req *Request) (json.RawMessage, error)

// Stub is a deterministic Caller. Each caller label is served by its own
// registered responder; the agent packages provide responders that reproduce
// the heuristic behavior a model-backed deployment replaces.
type Stub struct {
	mu         sync.RWMutex
	responders map[string]Responder
}

func NewStub() *Stub {
	return &Stub{responders: make(map[string]Responder)}
}

// Register installs the responder for a caller label, replacing any previous
// one.
func (s *Stub) Register(label string, r Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responders[label] = r
}

func (s *Stub) Call(_ context.Context, req *Request) (*Result, error) {
	s.mu.RLock()
	responder, ok := s.responders[req.CallerLabel]
	s.mu.RUnlock()

	if !ok {
		return nil, cperrors.New(cperrors.KindUnknown,
			fmt.Sprintf("no stub responder registered for caller %q", req.CallerLabel))
	}

	start := time.Now()
	data, err := responder(req)
	if err != nil {
		return nil, cperrors.Classify(err)
	}

	return &Result{
		Data: data,
		Metadata: Metadata{
			Model:       "stub",
			DurationMS:  time.Since(start).Milliseconds(),
			CallerLabel: req.CallerLabel,
		},
	}, nil
}

const (
	inputHeader = "## INPUT\n```json\n"
	inputFooter = "\n```"
)

// EncodeInput appends v as a fenced JSON input document to a prompt, so the
// same request serves both the model-backed caller (which reads the prompt)
// and the stub (which decodes the document).
func EncodeInput(prompt string, v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode prompt input: %w", err)
	}
	return prompt + "\n\n" + inputHeader + string(data) + inputFooter, nil
}

// DecodeInput extracts the fenced JSON input document from a user prompt.
func DecodeInput(userPrompt string, dest interface{}) error {
	start := strings.LastIndex(userPrompt, inputHeader)
	if start < 0 {
		return fmt.Errorf("prompt carries no input document")
	}
	body := userPrompt[start+len(inputHeader):]
	end := strings.LastIndex(body, inputFooter)
	if end < 0 {
		return fmt.Errorf("prompt input document is unterminated")
	}
	return json.Unmarshal([]byte(body[:end]), dest)
}
