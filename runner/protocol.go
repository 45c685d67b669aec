package runner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/job"
)

// MaxRequestBytes bounds the request document read from stdin.
const MaxRequestBytes = 1 << 20

// Exit codes of the runner process.
const (
	ExitOK       = 0
	ExitContract = 2
	ExitDeadline = 124
)

// Request is the document written to the runner's stdin.
type Request struct {
	DemoID     string          `json:"demo_id"`
	Parameters json.RawMessage `json:"parameters"`
}

// EncodeRequest serializes a request once, for delivery over stdin.
func EncodeRequest(demoID string, params json.RawMessage) ([]byte, error) {
	if demoID == "" {
		return nil, errors.New("demo id must not be empty")
	}
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	data, err := json.Marshal(Request{DemoID: demoID, Parameters: params})
	if err != nil {
		return nil, fmt.Errorf("failed to encode runner request: %w", err)
	}
	return data, nil
}

// DecodeRequest reads a single request document from r.
func DecodeRequest(r io.Reader) (Request, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxRequestBytes+1))
	if err != nil {
		return Request{}, fmt.Errorf("failed to read request: %w", err)
	}
	if len(data) > MaxRequestBytes {
		return Request{}, fmt.Errorf("request exceeds %d bytes", MaxRequestBytes)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var req Request
	if err := dec.Decode(&req); err != nil {
		return Request{}, fmt.Errorf("malformed request: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Request{}, errors.New("malformed request: trailing data")
	}
	if req.DemoID == "" {
		return Request{}, errors.New("malformed request: demo_id is required")
	}
	return req, nil
}

// ParseOutput turns captured runner stdout into a Result. Oversized,
// truncated or malformed output is a protocol error.
func ParseOutput(stdout []byte, truncated bool, maxBytes int) (*job.Result, error) {
	if truncated || (maxBytes > 0 && len(stdout) > maxBytes) {
		return nil, fmt.Errorf("%w: output exceeds %d bytes", job.ErrProtocol, maxBytes)
	}
	return job.DecodeResult(stdout)
}
