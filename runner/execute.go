package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/catalog"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/job"
)

// Execute runs the demo named by req and always returns a Result. A non-nil
// error means the request itself was unacceptable; the Result then describes
// the rejection.
func Execute(ctx context.Context, cat *catalog.Catalog, req Request, logger *zap.Logger) (*job.Result, error) {
	start := time.Now()
	meta := func(version string) job.Metadata {
		return job.Metadata{
			ExecutionTimeMS: float64(time.Since(start).Microseconds()) / 1000,
			DemoID:          req.DemoID,
			Version:         version,
		}
	}

	entry, params, err := cat.Validate(req.DemoID, req.Parameters)
	if err != nil {
		version := ""
		if entry != nil {
			version = entry.Version
		}
		return job.Failed(err.Error(), nil, meta(version)), err
	}

	data, err := invoke(ctx, entry, params, logger)
	if err != nil {
		return job.Failed(err.Error(), data, meta(entry.Version)), nil
	}

	res, err := job.Succeeded(data, meta(entry.Version))
	if err != nil {
		logger.Error("failed to encode computation result", zap.String("demo_id", req.DemoID), zap.Error(err))
		return job.Failed("computation returned data that cannot be encoded", nil, meta(entry.Version)), nil
	}
	return res, nil
}

func invoke(ctx context.Context, entry *catalog.Entry, params any, logger *zap.Logger) (data map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("computation panicked",
				zap.String("demo_id", entry.ID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			data = nil
			err = fmt.Errorf("%w: unexpected error: %v", job.ErrComputation, r)
		}
	}()
	return entry.Run(ctx, params)
}
