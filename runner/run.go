package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/catalog"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/logger"
)

// Options are the command-line settings of the runner process.
type Options struct {
	Deadline time.Duration
	Limits   Limits
}

// Args renders o as runner command-line flags.
func (o Options) Args() []string {
	args := []string{fmt.Sprintf("--deadline=%s", o.Deadline)}
	if o.Limits.MemoryMB > 0 {
		args = append(args, fmt.Sprintf("--memory-mb=%d", o.Limits.MemoryMB))
	}
	if o.Limits.CPUSeconds > 0 {
		args = append(args, fmt.Sprintf("--cpu-seconds=%d", o.Limits.CPUSeconds))
	}
	if o.Limits.MaxFileMB > 0 {
		args = append(args, fmt.Sprintf("--max-file-mb=%d", o.Limits.MaxFileMB))
	}
	return args
}

// ParseArgs parses runner flags.
func ParseArgs(args []string, stderr io.Writer) (Options, error) {
	var o Options
	fs := pflag.NewFlagSet("demo-runner", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.DurationVar(&o.Deadline, "deadline", 0, "exit with code 124 after this long (0 disables)")
	fs.IntVar(&o.Limits.MemoryMB, "memory-mb", 0, "address space limit in MiB")
	fs.IntVar(&o.Limits.CPUSeconds, "cpu-seconds", 0, "CPU time limit in seconds")
	fs.IntVar(&o.Limits.MaxFileMB, "max-file-mb", 0, "largest file the runner may write, in MiB")
	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	if fs.NArg() > 0 {
		return Options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return o, nil
}

// Run is the runner entrypoint. It returns the process exit code.
func Run(args []string, cat *catalog.Catalog, stdin io.Reader, stdout, stderr io.Writer) int {
	log, err := logger.NewWriter(stderr, "production", "info")
	if err != nil {
		return ExitContract
	}
	defer func() { _ = log.Sync() }()

	opts, err := ParseArgs(args, stderr)
	if err != nil {
		log.Error("invalid runner arguments", zap.Error(err))
		return ExitContract
	}
	if err := opts.Limits.Apply(); err != nil {
		log.Error("failed to apply resource limits", zap.Error(err))
		return ExitContract
	}

	ctx := context.Background()
	if opts.Deadline > 0 {
		stop := StartWatchdog(opts.Deadline, func() {
			log.Error("deadline exceeded, exiting", zap.Duration("deadline", opts.Deadline))
			_ = log.Sync()
		}, exitProcess)
		defer stop()

		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Deadline)
		defer cancel()
	}

	return Serve(ctx, cat, stdin, stdout, log)
}

// Serve reads one request from stdin and writes one result to stdout.
func Serve(ctx context.Context, cat *catalog.Catalog, stdin io.Reader, stdout io.Writer, log *zap.Logger) int {
	req, err := DecodeRequest(stdin)
	if err != nil {
		log.Error("rejecting request", zap.Error(err))
		return ExitContract
	}

	res, reqErr := Execute(ctx, cat, req, log)
	if reqErr != nil {
		log.Error("rejecting request", zap.String("demo_id", req.DemoID), zap.Error(reqErr))
	}

	data, err := json.Marshal(res)
	if err != nil {
		log.Error("failed to encode result", zap.Error(err))
		return ExitContract
	}
	if _, err := stdout.Write(append(data, '\n')); err != nil {
		log.Error("failed to write result", zap.Error(err))
		return ExitContract
	}
	if reqErr != nil {
		return ExitContract
	}
	return ExitOK
}
