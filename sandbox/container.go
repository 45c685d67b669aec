package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/job"
)

// Exit codes the container CLIs use for their own failures, as opposed to
// the runner's.
var containerLaunchExitCodes = map[int]string{
	125: "container runtime error",
	126: "runner command cannot be invoked",
	127: "runner command not found",
}

const removeTimeout = 10 * time.Second

// ContainerExecutor implements SandboxExecutor on top of an OCI container CLI
type ContainerExecutor struct {
	binary    string
	logger    *zap.Logger
	config    *Config
	cmdRunner CommandRunner
}

func newContainerExecutor(binary string, logger *zap.Logger, config *Config, opts ...Option) *ContainerExecutor {
	o := applyOptions(opts)
	return &ContainerExecutor{
		binary:    binary,
		logger:    logger,
		config:    config,
		cmdRunner: o.cmdRunner,
	}
}

// Execute runs the runner in a fresh container and removes it afterwards
//
//nolint:gocritic // Request struct is passed by value across the interface
func (c *ContainerExecutor) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	if req.Timeout <= 0 {
		return ExecuteResult{}, errors.New("execute request needs a positive timeout")
	}
	name := req.Name
	if name == "" {
		name = fmt.Sprintf("netdemo-%d", time.Now().UnixNano())
	}
	args := c.buildRunArgs(name, &req)

	c.logger.Debug("launching container",
		zap.String("runtime", c.binary),
		zap.String("container", name),
		zap.Strings("args", args),
	)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	out, err := c.cmdRunner.RunCommand(ctxWithTimeout, Command{
		Args:           args,
		Stdin:          req.Stdin,
		MaxOutputBytes: c.config.MaxOutputBytes,
		WaitDelay:      c.config.KillGrace,
	})

	if killed(ctxWithTimeout, out, err) {
		// Killing the CLI does not stop the container.
		c.forceRemove(ctx, name)
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
		return ExecuteResult{}, fmt.Errorf("failed to execute container: %w", err)
	}

	if reason, ok := containerLaunchExitCodes[out.ExitCode]; ok {
		c.forceRemove(ctx, name)
		return ExecuteResult{}, fmt.Errorf("%w: %s (%s exit %d): %s",
			job.ErrSandboxLaunch, reason, c.binary, out.ExitCode, firstLine(out.Stderr))
	}

	return ExecuteResult{
		Stdout:          out.Stdout,
		Stderr:          out.Stderr,
		ExitCode:        out.ExitCode,
		OutputTruncated: out.Truncated,
		Duration:        out.Duration,
	}, nil
}

// buildRunArgs renders the policy as container CLI flags. No value here is
// taken from job parameters.
func (c *ContainerExecutor) buildRunArgs(name string, req *ExecuteRequest) []string {
	p := req.Policy
	network := "none"
	if p.Network {
		network = "bridge"
	}

	args := []string{
		c.binary, "run",
		"--interactive",
		"--rm",
		"--name", name,
		"--read-only",
		"--tmpfs", fmt.Sprintf("/tmp:rw,noexec,nosuid,nodev,size=%dm", p.ScratchMB),
		"--security-opt", "no-new-privileges:true",
		"--cap-drop", "ALL",
	}
	for _, capability := range p.Capabilities {
		args = append(args, "--cap-add", capability)
	}
	args = append(args,
		"--network", network,
		"--cpus", strconv.FormatFloat(p.CPUs, 'f', -1, 64),
		"--memory", fmt.Sprintf("%dm", p.MemoryMB),
		"--memory-swap", fmt.Sprintf("%dm", p.MemoryMB),
		"--pids-limit", strconv.Itoa(p.PidsLimit),
		"--user", p.User,
		c.config.Image,
	)
	args = append(args, c.config.RunnerCommand...)
	return append(args, req.Args...)
}

func (c *ContainerExecutor) forceRemove(ctx context.Context, name string) {
	rmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), removeTimeout)
	defer cancel()

	out, err := c.cmdRunner.RunCommand(rmCtx, Command{Args: []string{c.binary, "rm", "--force", name}})
	if err != nil || out.ExitCode != 0 {
		c.logger.Warn("failed to remove container",
			zap.String("container", name),
			zap.Int("exit_code", out.ExitCode),
			zap.String("stderr", firstLine(out.Stderr)),
			zap.Error(err),
		)
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
