package job

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Metadata describes the execution that produced a Result.
type Metadata struct {
	ExecutionTimeMS float64 `json:"execution_time_ms"`
	DemoID          string  `json:"demo_id"`
	Version         string  `json:"version"`
}

// Result is the ExecutionResult document. Data is either a JSON object or
// null; Error is null on success.
type Result struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	Error    *string         `json:"error"`
	Metadata Metadata        `json:"metadata"`
}

// Succeeded builds a successful Result from a computation payload.
func Succeeded(data map[string]any, meta Metadata) (*Result, error) {
	raw, err := encodeData(data)
	if err != nil {
		return nil, err
	}
	return &Result{Success: true, Data: raw, Metadata: meta}, nil
}

// Failed builds an unsuccessful Result. Data may be nil; data that cannot
// be encoded is dropped.
func Failed(message string, data map[string]any, meta Metadata) *Result {
	raw, _ := encodeData(data)
	return &Result{Success: false, Data: raw, Error: &message, Metadata: meta}
}

// ErrorMessage returns the error text or "" on success.
func (r *Result) ErrorMessage() string {
	if r == nil || r.Error == nil {
		return ""
	}
	return *r.Error
}

// DecodeData unmarshals the payload into v. A null payload leaves v untouched.
func (r *Result) DecodeData(v any) error {
	if len(r.Data) == 0 || bytes.Equal(r.Data, []byte("null")) {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

// Clone returns a deep copy.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	if r.Data != nil {
		out.Data = append(json.RawMessage(nil), r.Data...)
	}
	if r.Error != nil {
		msg := *r.Error
		out.Error = &msg
	}
	return &out
}

// Check verifies the structural rules of the document: data must be an
// object or null, and a failure must carry an error message.
func (r *Result) Check() error {
	if len(r.Data) > 0 {
		trimmed := bytes.TrimSpace(r.Data)
		if !bytes.Equal(trimmed, []byte("null")) && (len(trimmed) == 0 || trimmed[0] != '{') {
			return fmt.Errorf("%w: data must be an object or null", ErrProtocol)
		}
	}
	if !r.Success && r.ErrorMessage() == "" {
		return fmt.Errorf("%w: failed result without error message", ErrProtocol)
	}
	if r.Metadata.DemoID == "" {
		return fmt.Errorf("%w: metadata.demo_id missing", ErrProtocol)
	}
	return nil
}

// DecodeResult parses exactly one ExecutionResult document from data.
// Trailing non-whitespace content is rejected.
func DecodeResult(data []byte) (*Result, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var r Result
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after result", ErrProtocol)
	}
	if err := r.Check(); err != nil {
		return nil, err
	}
	return &r, nil
}

func encodeData(data map[string]any) (json.RawMessage, error) {
	if data == nil {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result data: %w", err)
	}
	return raw, nil
}
