package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/invopop/jsonschema"
)

// DefaultVersion is reported when an entry does not set one.
const DefaultVersion = "1.0.0"

// Runtime bounds accepted for an entry.
const (
	MinRuntime = time.Second
	MaxRuntime = 300 * time.Second
)

// Info is the descriptive and policy part of an Entry.
type Info struct {
	ID          string
	Name        string
	Description string
	Category    string
	Version     string

	// MaxRuntime is the hard deadline enforced on every execution.
	MaxRuntime time.Duration
	// RequiresNetwork enables a network namespace with outbound access.
	RequiresNetwork bool
	// RequiresElevated grants Capability and nothing else.
	RequiresElevated bool
	Capability       string
}

// Params is implemented by every parameter struct.
type Params interface {
	Validate() error
}

// Defaulter is implemented by parameter structs that pre-populate defaults
// before decoding.
type Defaulter interface {
	ApplyDefaults()
}

// Entry is a registered demo.
type Entry struct {
	Info

	decode func(raw json.RawMessage) (any, error)
	run    func(ctx context.Context, params any) (map[string]any, error)
	schema func() *jsonschema.Schema
}

// Define builds an Entry whose parameters decode into P.
func Define[P any, PP interface {
	*P
	Params
}](info Info, fn func(ctx context.Context, p *P) (map[string]any, error)) Entry {
	if info.Version == "" {
		info.Version = DefaultVersion
	}
	return Entry{
		Info: info,
		decode: func(raw json.RawMessage) (any, error) {
			p := new(P)
			if d, ok := any(p).(Defaulter); ok {
				d.ApplyDefaults()
			}
			if err := decodeStrict(raw, p); err != nil {
				return nil, err
			}
			if err := PP(p).Validate(); err != nil {
				return nil, err
			}
			return p, nil
		},
		run: func(ctx context.Context, params any) (map[string]any, error) {
			p, ok := params.(*P)
			if !ok {
				return nil, fmt.Errorf("parameters have type %T, want %T", params, p)
			}
			if fn == nil {
				return nil, errors.New("no computation registered")
			}
			return fn(ctx, p)
		},
		schema: func() *jsonschema.Schema {
			r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
			return r.Reflect(new(P))
		},
	}
}

// DecodeParams decodes and validates raw parameters. Errors unwrap to
// job.ErrValidation.
func (e *Entry) DecodeParams(raw json.RawMessage) (any, error) {
	params, err := e.decode(raw)
	if err != nil {
		return nil, newValidationError(e.ID, err)
	}
	return params, nil
}

// Run invokes the computation with parameters previously returned by
// DecodeParams.
func (e *Entry) Run(ctx context.Context, params any) (map[string]any, error) {
	return e.run(ctx, params)
}

// ParametersSchema returns the JSON Schema of the parameter struct.
func (e *Entry) ParametersSchema() *jsonschema.Schema {
	return e.schema()
}

func (e *Entry) check() error {
	switch {
	case e.ID == "":
		return errors.New("entry id must not be empty")
	case e.decode == nil || e.run == nil:
		return fmt.Errorf("entry %q was not built with Define", e.ID)
	case e.MaxRuntime < MinRuntime || e.MaxRuntime > MaxRuntime:
		return fmt.Errorf("entry %q: max runtime must be between %s and %s, got: %s", e.ID, MinRuntime, MaxRuntime, e.MaxRuntime)
	case e.RequiresElevated && e.Capability == "":
		return fmt.Errorf("entry %q: elevated entries must name a capability", e.ID)
	case !e.RequiresElevated && e.Capability != "":
		return fmt.Errorf("entry %q: capability %s set without requiring elevation", e.ID, e.Capability)
	}
	return nil
}

func decodeStrict(raw json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after parameters object")
	}
	return nil
}
