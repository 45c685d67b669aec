package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/job"
)

const localPath = "/usr/local/bin:/usr/bin:/bin"

// LocalExecutor runs the runner binary as a host process in its own process
// group (for development only). Only the deadline, the output cap and the
// runner's self-imposed rlimits apply: there is no filesystem, network or
// identity isolation.
type LocalExecutor struct {
	logger    *zap.Logger
	config    *Config
	cmdRunner CommandRunner
	fs        FileSystem
	env       []string
}

// NewLocalExecutor creates a new LocalExecutor
func NewLocalExecutor(logger *zap.Logger, config *Config, env []string, opts ...Option) *LocalExecutor {
	o := applyOptions(opts)
	return &LocalExecutor{
		logger:    logger,
		config:    config,
		cmdRunner: o.cmdRunner,
		fs:        o.fs,
		env:       env,
	}
}

// Execute runs the runner locally (WARNING: not isolated, development only)
//
//nolint:gocritic // Request struct is passed by value across the interface
func (l *LocalExecutor) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	if req.Timeout <= 0 {
		return ExecuteResult{}, errors.New("execute request needs a positive timeout")
	}
	if l.config.RunnerPath == "" {
		return ExecuteResult{}, fmt.Errorf("%w: no runner path configured", job.ErrSandboxLaunch)
	}

	scratch, err := l.fs.MkdirTemp("", "netdemo-scratch-*")
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("%w: failed to create scratch dir: %v", job.ErrSandboxLaunch, err)
	}
	defer func() {
		if rmErr := l.fs.RemoveAll(scratch); rmErr != nil {
			l.logger.Error("failed to remove scratch directory", zap.String("path", scratch), zap.Error(rmErr))
		}
	}()

	env := append([]string{"PATH=" + localPath, "HOME=" + scratch, "TMPDIR=" + scratch}, l.env...)
	args := append([]string{l.config.RunnerPath}, req.Args...)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	start := time.Now()
	out, err := l.cmdRunner.RunCommand(ctxWithTimeout, Command{
		Args:           args,
		Stdin:          req.Stdin,
		Dir:            scratch,
		Env:            env,
		MaxOutputBytes: l.config.MaxOutputBytes,
		WaitDelay:      l.config.KillGrace,
	})

	if killed(ctxWithTimeout, out, err) {
		l.logger.Debug("runner killed", zap.String("name", req.Name), zap.Duration("elapsed", time.Since(start)))
		return ExecuteResult{
			Stdout:          out.Stdout,
			Stderr:          out.Stderr,
			ExitCode:        -1,
			TimedOut:        timedOut(ctx, ctxWithTimeout),
			OutputTruncated: out.Truncated,
			Duration:        out.Duration,
		}, nil
	}
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("failed to execute runner: %w", err)
	}

	return ExecuteResult{
		Stdout:          out.Stdout,
		Stderr:          out.Stderr,
		ExitCode:        out.ExitCode,
		OutputTruncated: out.Truncated,
		Duration:        out.Duration,
	}, nil
}
