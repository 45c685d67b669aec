package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/job"
)

// Policy is the resource and privilege envelope of one sandbox instance
type Policy struct {
	CPUs         float64
	MemoryMB     int
	PidsLimit    int
	ScratchMB    int
	Network      bool
	Capabilities []string
	User         string
}

// ExecuteRequest represents one runner launch
type ExecuteRequest struct {
	Name    string // unique instance name
	Stdin   []byte // runner request document
	Args    []string
	Timeout time.Duration
	Policy  Policy
}

// ExecuteResult represents the captured outcome of a runner launch
type ExecuteResult struct {
	Stdout          []byte
	Stderr          string
	ExitCode        int
	TimedOut        bool
	OutputTruncated bool
	Duration        time.Duration
}

// SandboxExecutor defines the interface for sandbox execution
type SandboxExecutor interface {
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error)
}

// Config holds the backend settings shared by all executors
type Config struct {
	Image          string
	RunnerCommand  []string // runner entrypoint inside the container image
	RunnerPath     string   // runner binary for the local backend
	MaxOutputBytes int
	KillGrace      time.Duration
}

// Output limits
const (
	DefaultMaxOutputBytes = 1 << 20
	MaxStderrBytes        = 64 << 10
)

// Command describes a process to run
type Command struct {
	Args           []string
	Stdin          []byte
	Dir            string
	Env            []string // nil inherits the parent environment
	MaxOutputBytes int
	WaitDelay      time.Duration
}

// CommandOutput holds what a finished process produced
type CommandOutput struct {
	Stdout    []byte
	Stderr    string
	ExitCode  int
	Truncated bool
	Duration  time.Duration
}

// CommandRunner defines an interface for executing system commands
type CommandRunner interface {
	RunCommand(ctx context.Context, cmd Command) (CommandOutput, error)
}

// RealCommandRunner implements CommandRunner using actual exec commands.
// Each command runs in its own process group, which is killed when ctx is
// done and again after exit to reap stragglers.
type RealCommandRunner struct{}

// RunCommand executes the given command. A process that starts and exits
// (normally, with a failure code, or killed) yields a nil error; only a
// failure to start is reported, wrapped in job.ErrSandboxLaunch.
func (RealCommandRunner) RunCommand(ctx context.Context, c Command) (CommandOutput, error) {
	if len(c.Args) < 1 {
		return CommandOutput{}, fmt.Errorf("%w: no command provided", job.ErrSandboxLaunch)
	}

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...) //nolint:gosec // Arguments are built by the executor, never from job input
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdin = bytes.NewReader(c.Stdin)
	cmd.WaitDelay = c.WaitDelay

	stdout := newLimitedBuffer(c.MaxOutputBytes)
	stderr := newLimitedBuffer(MaxStderrBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	configureProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return CommandOutput{}, fmt.Errorf("%w: %v", job.ErrSandboxLaunch, err)
	}
	err := cmd.Wait()
	_ = killProcessGroup(cmd)

	out := CommandOutput{
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.String(),
		Truncated: stdout.Truncated(),
		Duration:  time.Since(start),
	}
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			out.ExitCode = exitErr.ExitCode()
		case ctx.Err() != nil:
			out.ExitCode = -1
		default:
			return out, fmt.Errorf("failed to wait for command: %w", err)
		}
	}
	return out, nil
}

// killed reports whether a command was stopped because ctx ended. A process
// that exited on its own right at the deadline keeps its result.
func killed(ctx context.Context, out CommandOutput, err error) bool {
	return ctx.Err() != nil && (out.ExitCode == -1 || err != nil)
}

// timedOut reports whether the execution deadline, rather than the caller,
// ended the run.
func timedOut(parent, run context.Context) bool {
	return parent.Err() == nil && errors.Is(run.Err(), context.DeadlineExceeded)
}

// FileSystem defines the file system operations the executors need
type FileSystem interface {
	MkdirTemp(dir, pattern string) (string, error)
	RemoveAll(path string) error
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// limitedBuffer keeps the first limit bytes written and discards the rest,
// so a noisy child never blocks on a full pipe.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newLimitedBuffer(limit int) *limitedBuffer {
	if limit <= 0 {
		limit = DefaultMaxOutputBytes
	}
	return &limitedBuffer{limit: limit}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if len(p) > room {
		b.truncated = true
		if room > 0 {
			b.buf.Write(p[:room])
		}
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) Bytes() []byte {
	return append([]byte(nil), b.buf.Bytes()...)
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}

func (b *limitedBuffer) Truncated() bool {
	return b.truncated
}
