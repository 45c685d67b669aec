package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
	"go.uber.org/zap"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/catalog"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/job"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/queue"
)

// DemoInfo is the public description of a catalog entry.
type DemoInfo struct {
	ID                         string             `json:"id"`
	Name                       string             `json:"name"`
	Description                string             `json:"description"`
	Category                   string             `json:"category"`
	MaxRuntimeSeconds          int                `json:"max_runtime_seconds"`
	RequiresNetwork            bool               `json:"requires_network"`
	RequiresElevatedCapability bool               `json:"requires_elevated_capability"`
	Version                    string             `json:"version"`
	ParametersSchema           *jsonschema.Schema `json:"parameters_schema,omitempty"`
}

// Service validates submissions and reads job status.
type Service struct {
	queue   queue.Manager
	catalog *catalog.Catalog
	logger  *zap.Logger
}

// NewService creates a Service
func NewService(q queue.Manager, cat *catalog.Catalog, logger *zap.Logger) *Service {
	return &Service{queue: q, catalog: cat, logger: logger}
}

// Submit validates params for demoID and enqueues a job. It returns
// job.ErrUnknownDemo or a *catalog.ValidationError without creating a job.
func (s *Service) Submit(ctx context.Context, demoID string, params json.RawMessage) (job.Snapshot, error) {
	if _, _, err := s.catalog.Validate(demoID, params); err != nil {
		return job.Snapshot{}, err
	}

	id, err := s.queue.Enqueue(ctx, demoID, params)
	if err != nil {
		return job.Snapshot{}, fmt.Errorf("failed to enqueue job: %w", err)
	}
	s.logger.Info("job submitted", zap.String("job_id", id), zap.String("demo_id", demoID))

	return s.Status(ctx, id)
}

// Status returns the current view of a job, or job.ErrNotFound.
func (s *Service) Status(ctx context.Context, id string) (job.Snapshot, error) {
	j, err := s.queue.Get(ctx, id)
	if err != nil {
		return job.Snapshot{}, err
	}
	return j.Snapshot(), nil
}

// Demos lists the catalog sorted by id.
func (s *Service) Demos() []DemoInfo {
	entries := s.catalog.List()
	out := make([]DemoInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, describe(e))
	}
	return out
}

// Demo describes one entry including its parameter schema.
func (s *Service) Demo(id string) (DemoInfo, error) {
	e, err := s.catalog.Lookup(id)
	if err != nil {
		return DemoInfo{}, err
	}
	info := describe(e)
	info.ParametersSchema = e.ParametersSchema()
	return info, nil
}

func describe(e *catalog.Entry) DemoInfo {
	return DemoInfo{
		ID:                         e.ID,
		Name:                       e.Name,
		Description:                e.Description,
		Category:                   e.Category,
		MaxRuntimeSeconds:          int(e.MaxRuntime / time.Second),
		RequiresNetwork:            e.RequiresNetwork,
		RequiresElevatedCapability: e.RequiresElevated,
		Version:                    e.Version,
	}
}
