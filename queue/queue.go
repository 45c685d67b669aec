package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/config"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/job"
)

// Manager is the job queue and status store.
type Manager interface {
	// Enqueue stores a pending job and makes it visible to one Dequeue.
	Enqueue(ctx context.Context, demoID string, params json.RawMessage) (string, error)
	// Dequeue blocks until a pending job is delivered or ctx is done.
	Dequeue(ctx context.Context) (*job.Job, error)
	// MarkRunning moves a delivered job from pending to running.
	MarkRunning(ctx context.Context, id string) (*job.Job, error)
	// Get returns a copy of the job, or job.ErrNotFound once it has expired.
	Get(ctx context.Context, id string) (*job.Job, error)
	// Commit records the terminal status. A second commit fails with
	// job.ErrAlreadyTerminal.
	Commit(ctx context.Context, id string, status job.Status, result *job.Result, errMsg string) error
	Close() error
}

const pingTimeout = 5 * time.Second

// NewFromConfig creates the Manager selected by queue.backend
func NewFromConfig(cfg *config.Config, logger *zap.Logger) (Manager, error) {
	switch cfg.Queue.Backend {
	case "memory":
		return NewMemoryQueue(logger, cfg.GetQueueTTL(), WithPollInterval(cfg.GetPollTimeout())), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.Redis.Addr,
			Password: cfg.Queue.Redis.Password,
			DB:       cfg.Queue.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Queue.Redis.Addr, err)
		}
		return NewRedisQueue(client, logger, RedisOptions{
			KeyPrefix:   cfg.Queue.Redis.KeyPrefix,
			TTL:         cfg.GetQueueTTL(),
			PollTimeout: cfg.GetPollTimeout(),
		}), nil
	default:
		return nil, fmt.Errorf("unsupported queue backend: %s", cfg.Queue.Backend)
	}
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", job.ErrNotFound, id)
}
