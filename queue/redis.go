package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/job"
)

const (
	maxWatchRetries = 10
	loadTimeout     = 5 * time.Second
)

var _ Manager = (*RedisQueue)(nil)

// RedisOptions configures a RedisQueue
type RedisOptions struct {
	KeyPrefix   string
	TTL         time.Duration
	PollTimeout time.Duration
}

// RedisQueue is a Manager backed by Redis. Each job is a JSON string key
// expiring with the retention window; pending ids live in a list so that
// BRPOP hands each id to exactly one worker.
type RedisQueue struct {
	client *redis.Client
	logger *zap.Logger
	opts   RedisOptions
	now    func() time.Time
}

// NewRedisQueue creates a RedisQueue using an established client
func NewRedisQueue(client *redis.Client, logger *zap.Logger, opts RedisOptions) *RedisQueue {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollInterval
	}
	return &RedisQueue{
		client: client,
		logger: logger,
		opts:   opts,
		now:    time.Now,
	}
}

func (q *RedisQueue) jobKey(id string) string {
	return q.opts.KeyPrefix + "job:" + id
}

func (q *RedisQueue) pendingKey() string {
	return q.opts.KeyPrefix + "pending"
}

func (q *RedisQueue) Enqueue(ctx context.Context, demoID string, params json.RawMessage) (string, error) {
	j := job.New(demoID, params, q.now())
	data, err := json.Marshal(j)
	if err != nil {
		return "", fmt.Errorf("failed to encode job: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, q.jobKey(j.ID), data, q.opts.TTL)
		pipe.LPush(ctx, q.pendingKey(), j.ID)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	q.logger.Debug("job enqueued", zap.String("job_id", j.ID), zap.String("demo_id", demoID))
	return j.ID, nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*job.Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := q.client.BRPop(ctx, q.opts.PollTimeout, q.pendingKey()).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to pop pending job: %w", err)
		}

		j, err := q.deliver(ctx, res[1])
		if err != nil {
			return nil, err
		}
		if j != nil {
			return j, nil
		}
	}
}

// deliver loads a popped id. The load ignores ctx cancellation so a popped
// job is never lost: if ctx ended meanwhile, or Redis failed, the id goes back
// to the head of the pending list. A nil job means the id was stale and
// dropped.
func (q *RedisQueue) deliver(ctx context.Context, id string) (*job.Job, error) {
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
	defer cancel()

	data, err := q.client.Get(loadCtx, q.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		q.logger.Debug("dropping expired pending job", zap.String("job_id", id))
		return nil, nil
	}
	if err != nil {
		q.requeue(loadCtx, id)
		return nil, fmt.Errorf("failed to load dequeued job %s: %w", id, err)
	}

	j, err := decodeJob(id, data)
	if err != nil {
		q.logger.Error("dropping undecodable job", zap.String("job_id", id), zap.Error(err))
		return nil, nil
	}
	if j.Status != job.StatusPending {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		q.requeue(loadCtx, id)
		return nil, err
	}
	return j, nil
}

// requeue puts id back where BRPOP takes from next.
func (q *RedisQueue) requeue(ctx context.Context, id string) {
	if err := q.client.RPush(ctx, q.pendingKey(), id).Err(); err != nil {
		q.logger.Error("failed to requeue job, it stays pending until expiry", zap.String("job_id", id), zap.Error(err))
	}
}

func (q *RedisQueue) MarkRunning(ctx context.Context, id string) (*job.Job, error) {
	return q.update(ctx, id, func(j *job.Job) error {
		return j.MarkRunning(q.now())
	})
}

func (q *RedisQueue) Get(ctx context.Context, id string) (*job.Job, error) {
	data, err := q.client.Get(ctx, q.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return decodeJob(id, data)
}

func (q *RedisQueue) Commit(ctx context.Context, id string, status job.Status, result *job.Result, errMsg string) error {
	_, err := q.update(ctx, id, func(j *job.Job) error {
		return j.Finish(status, result, errMsg, q.now())
	})
	return err
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// update applies fn to the stored job under optimistic locking, keeping the
// key's remaining TTL.
func (q *RedisQueue) update(ctx context.Context, id string, fn func(*job.Job) error) (*job.Job, error) {
	key := q.jobKey(id)
	var updated *job.Job

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return notFound(id)
		}
		if err != nil {
			return err
		}
		j, err := decodeJob(id, data)
		if err != nil {
			return err
		}
		if err := fn(j); err != nil {
			return err
		}
		encoded, err := json.Marshal(j)
		if err != nil {
			return fmt.Errorf("failed to encode job %s: %w", id, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, redis.KeepTTL)
			return nil
		})
		if err == nil {
			updated = j
		}
		return err
	}

	for range maxWatchRetries {
		err := q.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("job %s: too many concurrent updates", id)
}

func decodeJob(id string, data []byte) (*job.Job, error) {
	var j job.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &j, nil
}
