package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/catalog"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/config"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/job"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/queue"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/runner"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/sandbox"
)

// Messages recorded against failed jobs. Details stay in the logs.
const (
	msgLaunchFailed   = "sandbox launch failed"
	msgRunnerFailed   = "internal error: demo runner failed"
	msgInvalidOutput  = "internal error: invalid runner output"
	msgAborted        = "execution aborted: worker shutting down"
	msgNotStarted     = "internal error: job could not be started"
	maxLoggedStderr   = 4 << 10
	commitTimeout     = 10 * time.Second
	defaultKillGrace  = 2 * time.Second
	sandboxNamePrefix = "netdemo-"
)

// Options is the fixed part of the sandbox policy plus supervision settings
type Options struct {
	CPUs           float64
	MemoryMB       int
	PidsLimit      int
	ScratchMB      int
	User           string
	KillGrace      time.Duration
	MaxOutputBytes int
}

// OptionsFromConfig extracts orchestrator options from the application config
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CPUs:           cfg.Sandbox.CPUs,
		MemoryMB:       cfg.Sandbox.MemoryMB,
		PidsLimit:      cfg.Sandbox.PidsLimit,
		ScratchMB:      cfg.Sandbox.ScratchMB,
		User:           cfg.Sandbox.User,
		KillGrace:      cfg.GetKillGrace(),
		MaxOutputBytes: cfg.GetMaxOutputBytes(),
	}
}

// Orchestrator runs dequeued jobs. It is the only caller of Commit.
type Orchestrator struct {
	queue    queue.Manager
	catalog  *catalog.Catalog
	executor sandbox.SandboxExecutor
	logger   *zap.Logger
	opts     Options
	now      func() time.Time
}

// New creates an Orchestrator
func New(q queue.Manager, cat *catalog.Catalog, executor sandbox.SandboxExecutor, logger *zap.Logger, opts Options) *Orchestrator {
	if opts.KillGrace <= 0 {
		opts.KillGrace = defaultKillGrace
	}
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = sandbox.DefaultMaxOutputBytes
	}
	return &Orchestrator{
		queue:    q,
		catalog:  cat,
		executor: executor,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// Policy derives the sandbox policy for a catalog entry. Network access and
// the single capability come from the entry; every other limit is fixed.
func (o *Orchestrator) Policy(entry *catalog.Entry) sandbox.Policy {
	p := sandbox.Policy{
		CPUs:      o.opts.CPUs,
		MemoryMB:  o.opts.MemoryMB,
		PidsLimit: o.opts.PidsLimit,
		ScratchMB: o.opts.ScratchMB,
		Network:   entry.RequiresNetwork,
		User:      o.opts.User,
	}
	if entry.RequiresElevated {
		p.Capabilities = []string{entry.Capability}
	}
	return p
}

// runnerArgs sets the runner's own deadline past the supervisor's so the
// supervisor normally fires first.
func (o *Orchestrator) runnerArgs(entry *catalog.Entry) []string {
	deadline := entry.MaxRuntime + o.opts.KillGrace
	return runner.Options{
		Deadline: deadline,
		Limits: runner.Limits{
			CPUSeconds: int(deadline.Seconds()) + 1,
			MaxFileMB:  o.opts.ScratchMB,
		},
	}.Args()
}

// Run executes one dequeued job, commits its terminal status and returns the
// committed result. The result is never nil.
func (o *Orchestrator) Run(ctx context.Context, j *job.Job) *job.Result {
	log := o.logger.With(zap.String("job_id", j.ID), zap.String("demo_id", j.DemoID))
	meta := job.Metadata{DemoID: j.DemoID}

	entry, _, err := o.catalog.Validate(j.DemoID, j.Parameters)
	if err != nil {
		log.Warn("job rejected before launch", zap.Error(err))
		label := j.DemoID
		if errors.Is(err, job.ErrUnknownDemo) {
			label = unknownDemoLabel
		}
		res := job.Failed(err.Error(), nil, meta)
		o.commit(ctx, log, j.ID, label, job.StatusFailed, res, err.Error())
		return res
	}
	meta.Version = entry.Version

	stdin, err := runner.EncodeRequest(j.DemoID, j.Parameters)
	if err != nil {
		log.Error("failed to encode runner request", zap.Error(err))
		res := job.Failed(msgRunnerFailed, nil, meta)
		o.commit(ctx, log, j.ID, j.DemoID, job.StatusFailed, res, msgRunnerFailed)
		return res
	}

	running, err := o.queue.MarkRunning(ctx, j.ID)
	if err != nil {
		log.Error("failed to mark job running", zap.Error(err))
		res := job.Failed(msgNotStarted, nil, meta)
		// Expired or already advanced: nothing left to commit to.
		if !errors.Is(err, job.ErrNotFound) && !errors.Is(err, job.ErrInvalidTransition) && !errors.Is(err, job.ErrAlreadyTerminal) {
			o.commit(ctx, log, j.ID, j.DemoID, job.StatusFailed, res, msgNotStarted)
		}
		return res
	}
	started := o.now()
	if running.StartedAt != nil {
		started = *running.StartedAt
	}

	policy := o.Policy(entry)
	log.Info("launching sandbox",
		zap.Duration("max_runtime", entry.MaxRuntime),
		zap.Bool("network", policy.Network),
		zap.Strings("capabilities", policy.Capabilities),
	)

	sandboxesActive.Inc()
	out, execErr := o.executor.Execute(ctx, sandbox.ExecuteRequest{
		Name:    sandboxNamePrefix + j.ID,
		Stdin:   stdin,
		Args:    o.runnerArgs(entry),
		Timeout: entry.MaxRuntime,
		Policy:  policy,
	})
	sandboxesActive.Dec()

	elapsed := o.now().Sub(started)
	meta.ExecutionTimeMS = float64(elapsed.Microseconds()) / 1000

	status, res, msg := o.interpret(ctx, log, entry, meta, out, execErr)
	jobDuration.WithLabelValues(j.DemoID).Observe(elapsed.Seconds())
	o.commit(ctx, log, j.ID, j.DemoID, status, res, msg)
	return res
}

// interpret maps a sandbox outcome onto a terminal status.
//
//nolint:gocritic // ExecuteResult is passed by value across the interface
func (o *Orchestrator) interpret(ctx context.Context, log *zap.Logger, entry *catalog.Entry, meta job.Metadata, out sandbox.ExecuteResult, execErr error) (job.Status, *job.Result, string) {
	fail := func(status job.Status, msg string) (job.Status, *job.Result, string) {
		return status, job.Failed(msg, nil, meta), msg
	}

	switch {
	case execErr != nil:
		log.Error("sandbox launch failed", zap.Error(execErr))
		return fail(job.StatusFailed, msgLaunchFailed)
	case out.TimedOut || out.ExitCode == runner.ExitDeadline:
		log.Warn("execution timed out",
			zap.Duration("max_runtime", entry.MaxRuntime),
			zap.Int("exit_code", out.ExitCode),
		)
		return fail(job.StatusTimeout, fmt.Sprintf("%v after %s", job.ErrExecutionTimeout, entry.MaxRuntime))
	case ctx.Err() != nil:
		log.Warn("execution aborted", zap.Error(ctx.Err()))
		return fail(job.StatusFailed, msgAborted)
	case out.ExitCode != runner.ExitOK:
		log.Error("runner exited with failure",
			zap.Int("exit_code", out.ExitCode),
			zap.String("stderr", truncate(out.Stderr, maxLoggedStderr)),
		)
		return fail(job.StatusFailed, msgRunnerFailed)
	}

	res, err := runner.ParseOutput(out.Stdout, out.OutputTruncated, o.opts.MaxOutputBytes)
	if err == nil && res.Metadata.DemoID != entry.ID {
		err = fmt.Errorf("%w: result is for demo %q", job.ErrProtocol, res.Metadata.DemoID)
	}
	if err != nil {
		log.Error("rejecting runner output",
			zap.Error(err),
			zap.Int("stdout_bytes", len(out.Stdout)),
			zap.String("stderr", truncate(out.Stderr, maxLoggedStderr)),
		)
		return fail(job.StatusFailed, msgInvalidOutput)
	}

	if out.Stderr != "" {
		log.Debug("runner diagnostics", zap.String("stderr", truncate(out.Stderr, maxLoggedStderr)))
	}
	if !res.Success {
		log.Info("demo reported failure", zap.String("error", res.ErrorMessage()))
	}
	return job.StatusCompleted, res, ""
}

func (o *Orchestrator) commit(ctx context.Context, log *zap.Logger, id, label string, status job.Status, res *job.Result, msg string) {
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()

	if err := o.queue.Commit(commitCtx, id, status, res, msg); err != nil {
		log.Error("failed to commit job", zap.String("status", string(status)), zap.Error(err))
		return
	}
	jobsTotal.WithLabelValues(label, string(status)).Inc()
	log.Info("job finished", zap.String("status", string(status)))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
