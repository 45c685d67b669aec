package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/job"
)

type greetParams struct {
	Name  string `json:"name" jsonschema:"minLength=1,description=Who to greet"`
	Times int    `json:"times,omitempty" jsonschema:"minimum=1,maximum=3"`
}

func (p *greetParams) ApplyDefaults() {
	p.Times = 1
}

func (p *greetParams) Validate() error {
	if p.Name == "" {
		return Invalid("name", "must not be empty")
	}
	if p.Times < 1 || p.Times > 3 {
		return Invalid("times", "must be between 1 and 3, got: %d", p.Times)
	}
	return nil
}

func greetEntry(id string) Entry {
	return Define(Info{ID: id, Name: "Greet", MaxRuntime: 5 * time.Second},
		func(_ context.Context, p *greetParams) (map[string]any, error) {
			return map[string]any{"name": p.Name, "times": p.Times}, nil
		})
}

func TestNew(t *testing.T) {
	t.Run("SortedList", func(t *testing.T) {
		c, err := New(greetEntry("b"), greetEntry("a"))
		require.NoError(t, err)
		require.Equal(t, 2, c.Len())
		list := c.List()
		assert.Equal(t, "a", list[0].ID)
		assert.Equal(t, "b", list[1].ID)
		assert.Equal(t, DefaultVersion, list[0].Version)
	})

	t.Run("DuplicateID", func(t *testing.T) {
		_, err := New(greetEntry("a"), greetEntry("a"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("InvalidEntries", func(t *testing.T) {
		tooLong := greetEntry("slow")
		tooLong.MaxRuntime = time.Hour

		noCap := greetEntry("raw")
		noCap.RequiresElevated = true

		strayCap := greetEntry("stray")
		strayCap.Capability = "NET_ADMIN"

		for name, e := range map[string]Entry{
			"EmptyID":        greetEntry(""),
			"RuntimeTooLong": tooLong,
			"ElevatedNoCap":  noCap,
			"CapNoElevated":  strayCap,
			"NotDefined":     {Info: Info{ID: "x", MaxRuntime: time.Second}},
		} {
			t.Run(name, func(t *testing.T) {
				_, err := New(e)
				assert.Error(t, err)
			})
		}
	})

	t.Run("MustNewPanics", func(t *testing.T) {
		assert.Panics(t, func() { MustNew(greetEntry(""), greetEntry("")) })
	})
}

func TestLookup(t *testing.T) {
	c := MustNew(greetEntry("greet"))

	e, err := c.Lookup("greet")
	require.NoError(t, err)
	assert.Equal(t, "Greet", e.Name)

	again, err := c.Lookup("greet")
	require.NoError(t, err)
	assert.Same(t, e, again)

	_, err = c.Lookup("no-such-demo")
	require.Error(t, err)
	assert.ErrorIs(t, err, job.ErrUnknownDemo)
	assert.Contains(t, err.Error(), "no-such-demo")
}

func TestValidate(t *testing.T) {
	c := MustNew(greetEntry("greet"))

	t.Run("DefaultsApplied", func(t *testing.T) {
		_, params, err := c.Validate("greet", json.RawMessage(`{"name":"ada"}`))
		require.NoError(t, err)
		p, ok := params.(*greetParams)
		require.True(t, ok)
		assert.Equal(t, 1, p.Times)
	})

	t.Run("FieldError", func(t *testing.T) {
		_, _, err := c.Validate("greet", json.RawMessage(`{"name":"ada","times":9}`))
		require.Error(t, err)
		assert.ErrorIs(t, err, job.ErrValidation)

		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "times", ve.Field)
		assert.Equal(t, "greet", ve.DemoID)
	})

	t.Run("UnknownField", func(t *testing.T) {
		_, _, err := c.Validate("greet", json.RawMessage(`{"name":"ada","cmd":"rm -rf /"}`))
		assert.ErrorIs(t, err, job.ErrValidation)
	})

	t.Run("NullMeansEmpty", func(t *testing.T) {
		_, _, err := c.Validate("greet", json.RawMessage(`null`))
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "name", ve.Field)
	})

	t.Run("NotAnObject", func(t *testing.T) {
		_, _, err := c.Validate("greet", json.RawMessage(`[1]`))
		assert.ErrorIs(t, err, job.ErrValidation)
	})

	t.Run("UnknownDemo", func(t *testing.T) {
		_, _, err := c.Validate("missing", json.RawMessage(`{}`))
		assert.ErrorIs(t, err, job.ErrUnknownDemo)
	})
}

func TestEntryRun(t *testing.T) {
	c := MustNew(greetEntry("greet"))
	e, params, err := c.Validate("greet", json.RawMessage(`{"name":"ada","times":2}`))
	require.NoError(t, err)

	out, err := e.Run(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "ada", "times": 2}, out)

	_, err = e.Run(context.Background(), "wrong type")
	assert.Error(t, err)
}

func TestParametersSchema(t *testing.T) {
	e, err := MustNew(greetEntry("greet")).Lookup("greet")
	require.NoError(t, err)

	raw, err := json.Marshal(e.ParametersSchema())
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(raw, &schema))
	assert.Equal(t, "object", schema["type"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "name")
	assert.Contains(t, props, "times")
	assert.Equal(t, []any{"name"}, schema["required"])
}

func TestConcurrentLookup(t *testing.T) {
	c := MustNew(greetEntry("greet"))
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.Validate("greet", json.RawMessage(`{"name":"x"}`))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
