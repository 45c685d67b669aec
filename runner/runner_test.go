package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/catalog"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/job"
)

type numberParams struct {
	N int `json:"n"`
}

func (*numberParams) Validate() error { return nil }

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	info := func(id string) catalog.Info {
		return catalog.Info{ID: id, MaxRuntime: 5 * time.Second, Version: "2.0.0"}
	}
	c, err := catalog.New(
		catalog.Define(info("answer"), func(_ context.Context, p *numberParams) (map[string]any, error) {
			return map[string]any{"n": p.N}, nil
		}),
		catalog.Define(info("refuse"), func(_ context.Context, _ *numberParams) (map[string]any, error) {
			return map[string]any{"attempted": true}, errors.New("connection refused")
		}),
		catalog.Define(info("panic"), func(_ context.Context, _ *numberParams) (map[string]any, error) {
			panic("index out of range")
		}),
		catalog.Define(info("nan"), func(_ context.Context, _ *numberParams) (map[string]any, error) {
			return map[string]any{"bad": func() {}}, nil
		}),
	)
	require.NoError(t, err)
	return c
}

func TestEncodeDecodeRequest(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		data, err := EncodeRequest("answer", json.RawMessage(`{"n":42}`))
		require.NoError(t, err)
		req, err := DecodeRequest(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "answer", req.DemoID)
		assert.JSONEq(t, `{"n":42}`, string(req.Parameters))
	})

	t.Run("EmptyParamsBecomeObject", func(t *testing.T) {
		data, err := EncodeRequest("answer", nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"demo_id":"answer","parameters":{}}`, string(data))
	})

	t.Run("Rejected", func(t *testing.T) {
		for name, input := range map[string]string{
			"Empty":        ``,
			"NoDemo":       `{"parameters":{}}`,
			"UnknownField": `{"demo_id":"a","parameters":{},"code":"x"}`,
			"Trailing":     `{"demo_id":"a"} {"demo_id":"b"}`,
			"TooLarge":     `{"demo_id":"a","parameters":{"s":"` + strings.Repeat("x", MaxRequestBytes) + `"}}`,
		} {
			t.Run(name, func(t *testing.T) {
				_, err := DecodeRequest(strings.NewReader(input))
				assert.Error(t, err)
			})
		}
	})
}

func TestExecute(t *testing.T) {
	cat := testCatalog(t)
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		res, err := Execute(ctx, cat, Request{DemoID: "answer", Parameters: json.RawMessage(`{"n":42}`)}, logger)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Nil(t, res.Error)
		assert.Equal(t, "answer", res.Metadata.DemoID)
		assert.Equal(t, "2.0.0", res.Metadata.Version)

		var payload numberParams
		require.NoError(t, res.DecodeData(&payload))
		assert.Equal(t, 42, payload.N)
	})

	t.Run("ComputationError", func(t *testing.T) {
		res, err := Execute(ctx, cat, Request{DemoID: "refuse"}, logger)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "connection refused", res.ErrorMessage())
		assert.JSONEq(t, `{"attempted":true}`, string(res.Data))
	})

	t.Run("PanicRecovered", func(t *testing.T) {
		res, err := Execute(ctx, cat, Request{DemoID: "panic"}, logger)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Contains(t, res.ErrorMessage(), "index out of range")
		assert.NoError(t, res.Check())
	})

	t.Run("PanicIsComputationError", func(t *testing.T) {
		entry, params, err := cat.Validate("panic", nil)
		require.NoError(t, err)
		_, err = invoke(ctx, entry, params, logger)
		assert.ErrorIs(t, err, job.ErrComputation)
	})

	t.Run("UnencodableData", func(t *testing.T) {
		res, err := Execute(ctx, cat, Request{DemoID: "nan"}, logger)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.NoError(t, res.Check())
	})

	t.Run("UnknownDemo", func(t *testing.T) {
		res, err := Execute(ctx, cat, Request{DemoID: "no-such-demo"}, logger)
		assert.ErrorIs(t, err, job.ErrUnknownDemo)
		assert.False(t, res.Success)
		assert.Equal(t, "no-such-demo", res.Metadata.DemoID)
	})

	t.Run("InvalidParameters", func(t *testing.T) {
		_, err := Execute(ctx, cat, Request{DemoID: "answer", Parameters: json.RawMessage(`{"n":"x"}`)}, logger)
		assert.ErrorIs(t, err, job.ErrValidation)
	})
}

func TestServe(t *testing.T) {
	cat := testCatalog(t)
	logger := zaptest.NewLogger(t)

	tests := []struct {
		name     string
		stdin    string
		wantCode int
		wantOut  bool
		success  bool
	}{
		{"Success", `{"demo_id":"answer","parameters":{"n":42}}`, ExitOK, true, true},
		{"ComputationErrorStillExitsZero", `{"demo_id":"refuse","parameters":{}}`, ExitOK, true, false},
		{"PanicStillExitsZero", `{"demo_id":"panic","parameters":{}}`, ExitOK, true, false},
		{"UnknownDemo", `{"demo_id":"nope","parameters":{}}`, ExitContract, true, false},
		{"Malformed", `not json`, ExitContract, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout bytes.Buffer
			code := Serve(context.Background(), cat, strings.NewReader(tt.stdin), &stdout, logger)
			assert.Equal(t, tt.wantCode, code)
			if !tt.wantOut {
				assert.Empty(t, stdout.String())
				return
			}
			res, err := ParseOutput(stdout.Bytes(), false, 1<<20)
			require.NoError(t, err)
			assert.Equal(t, tt.success, res.Success)
			assert.Equal(t, 1, strings.Count(stdout.String(), "\n"))
		})
	}
}

func TestRun(t *testing.T) {
	cat := testCatalog(t)

	t.Run("DiagnosticsOnlyOnStderr", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		code := Run([]string{"--deadline=5s"}, cat, strings.NewReader(`{"demo_id":"panic","parameters":{}}`), &stdout, &stderr)
		assert.Equal(t, ExitOK, code)
		assert.Contains(t, stderr.String(), "computation panicked")
		assert.NotContains(t, stdout.String(), "computation panicked")

		_, err := ParseOutput(stdout.Bytes(), false, 1<<20)
		assert.NoError(t, err)
	})

	t.Run("BadFlags", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		code := Run([]string{"--shell=/bin/sh"}, cat, strings.NewReader(`{}`), &stdout, &stderr)
		assert.Equal(t, ExitContract, code)
		assert.Empty(t, stdout.String())
	})
}

func TestParseArgs(t *testing.T) {
	opts := Options{Deadline: 32 * time.Second, Limits: Limits{MemoryMB: 256, CPUSeconds: 31, MaxFileMB: 10}}
	parsed, err := ParseArgs(opts.Args(), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, opts, parsed)

	_, err = ParseArgs([]string{"extra"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestStartWatchdog(t *testing.T) {
	t.Run("Fires", func(t *testing.T) {
		codes := make(chan int, 1)
		expired := make(chan struct{})
		StartWatchdog(10*time.Millisecond, func() { close(expired) }, func(code int) { codes <- code })

		select {
		case code := <-codes:
			assert.Equal(t, ExitDeadline, code)
			<-expired
		case <-time.After(2 * time.Second):
			t.Fatal("watchdog did not fire")
		}
	})

	t.Run("Stopped", func(t *testing.T) {
		codes := make(chan int, 1)
		stop := StartWatchdog(50*time.Millisecond, nil, func(code int) { codes <- code })
		stop()
		select {
		case <-codes:
			t.Fatal("stopped watchdog fired")
		case <-time.After(150 * time.Millisecond):
		}
	})
}

func TestParseOutput(t *testing.T) {
	valid := []byte(`{"success":true,"data":{"n":42},"error":null,"metadata":{"execution_time_ms":1,"demo_id":"answer","version":"1.0.0"}}`)

	t.Run("Valid", func(t *testing.T) {
		res, err := ParseOutput(valid, false, 1024)
		require.NoError(t, err)
		assert.True(t, res.Success)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := ParseOutput(valid[:20], true, 20)
		assert.ErrorIs(t, err, job.ErrProtocol)
	})

	t.Run("Oversized", func(t *testing.T) {
		_, err := ParseOutput(valid, false, 16)
		assert.ErrorIs(t, err, job.ErrProtocol)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := ParseOutput([]byte("Traceback (most recent call last)"), false, 1024)
		assert.ErrorIs(t, err, job.ErrProtocol)
	})
}
