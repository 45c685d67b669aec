package orchestrator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/job"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/queue"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/sandbox"
)

// newProcessHarness runs jobs in real runner processes: the local backend
// launches this test binary, which TestMain turns into the runner.
func newProcessHarness(t *testing.T) *harness {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires process groups")
	}
	self, err := os.Executable()
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	opts := testOptions()
	executor := sandbox.NewLocalExecutor(logger, &sandbox.Config{
		RunnerPath:     self,
		MaxOutputBytes: opts.MaxOutputBytes,
		KillGrace:      opts.KillGrace,
	}, []string{runnerEnv + "=1"})

	q := queue.NewMemoryQueue(logger, time.Hour, queue.WithPollInterval(10*time.Millisecond))
	return &harness{
		queue: q,
		orch:  New(q, testCatalog(), executor, logger, opts),
	}
}

func TestOrchestratorRealProcess(t *testing.T) {
	if testing.Short() {
		t.Skip("launches runner processes")
	}

	t.Run("Completed", func(t *testing.T) {
		h := newProcessHarness(t)
		j := h.submit(t, "answer", `{"n":42}`)
		h.orch.Run(context.Background(), j)

		stored := h.stored(t, j.ID)
		require.Equal(t, job.StatusCompleted, stored.Status, stored.Error)
		var data struct{ N int }
		require.NoError(t, stored.Result.DecodeData(&data))
		assert.Equal(t, 42, data.N)
		assert.Equal(t, "answer", stored.Result.Metadata.DemoID)
		assert.Equal(t, "1.0.0", stored.Result.Metadata.Version)
	})

	t.Run("UnexpectedErrorKeepsResultShape", func(t *testing.T) {
		h := newProcessHarness(t)
		j := h.submit(t, "panic", `{}`)
		h.orch.Run(context.Background(), j)

		stored := h.stored(t, j.ID)
		require.Equal(t, job.StatusCompleted, stored.Status, stored.Error)
		require.NotNil(t, stored.Result)
		require.NoError(t, stored.Result.Check())
		assert.False(t, stored.Result.Success)
		assert.Contains(t, stored.Result.ErrorMessage(), "unexpected error")
		assert.NotContains(t, stored.Result.ErrorMessage(), "goroutine")
	})

	t.Run("OversizedOutputFails", func(t *testing.T) {
		h := newProcessHarness(t)
		j := h.submit(t, "flood", `{}`)
		h.orch.Run(context.Background(), j)

		stored := h.stored(t, j.ID)
		assert.Equal(t, job.StatusFailed, stored.Status)
		assert.Equal(t, msgInvalidOutput, stored.Error)
	})

	t.Run("DeadlineKillsRunner", func(t *testing.T) {
		h := newProcessHarness(t)
		pidFile := filepath.Join(t.TempDir(), "runner.pid")
		params, err := json.Marshal(map[string]string{"pid_file": pidFile})
		require.NoError(t, err)

		j := h.submit(t, "sleeper", string(params))
		start := time.Now()
		h.orch.Run(context.Background(), j)
		elapsed := time.Since(start)

		stored := h.stored(t, j.ID)
		require.Equal(t, job.StatusTimeout, stored.Status)
		require.NotNil(t, stored.StartedAt)
		require.NotNil(t, stored.CompletedAt)
		supervised := stored.CompletedAt.Sub(*stored.StartedAt)
		assert.GreaterOrEqual(t, supervised, 2*time.Second)
		assert.Less(t, supervised, 4*time.Second)
		assert.Less(t, elapsed, 5*time.Second)

		raw, err := os.ReadFile(pidFile)
		require.NoError(t, err)
		pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
		require.NoError(t, err)
		if runtime.GOOS == "linux" {
			assert.Eventually(t, func() bool { return !processAlive(pid) }, 2*time.Second, 20*time.Millisecond)
		}
	})
}

// processAlive reports whether pid exists and is not a zombie.
func processAlive(pid int) bool {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return false
	}
	fields := strings.Fields(string(data[strings.LastIndexByte(string(data), ')')+1:]))
	return len(fields) > 0 && fields[0] != "Z"
}
