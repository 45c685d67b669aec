package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/job"
)

const defaultPollInterval = time.Second

var _ Manager = (*MemoryQueue)(nil)

type memoryEntry struct {
	job       *job.Job
	expiresAt time.Time
}

// MemoryQueue is an in-process Manager. Expired records are dropped lazily
// on access and in bulk by Sweep.
type MemoryQueue struct {
	mu      sync.Mutex
	jobs    map[string]*memoryEntry
	pending []string
	wake    chan struct{}

	ttl    time.Duration
	poll   time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// MemoryOption configures a MemoryQueue
type MemoryOption func(*MemoryQueue)

// WithClock replaces time.Now
func WithClock(now func() time.Time) MemoryOption {
	return func(q *MemoryQueue) {
		q.now = now
	}
}

// WithPollInterval sets how often a blocked Dequeue rechecks the queue
// without a wake-up.
func WithPollInterval(d time.Duration) MemoryOption {
	return func(q *MemoryQueue) {
		if d > 0 {
			q.poll = d
		}
	}
}

// NewMemoryQueue creates a MemoryQueue retaining jobs for ttl
func NewMemoryQueue(logger *zap.Logger, ttl time.Duration, opts ...MemoryOption) *MemoryQueue {
	q := &MemoryQueue{
		jobs:   make(map[string]*memoryEntry),
		wake:   make(chan struct{}, 1),
		ttl:    ttl,
		poll:   defaultPollInterval,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *MemoryQueue) Enqueue(_ context.Context, demoID string, params json.RawMessage) (string, error) {
	now := q.now()
	j := job.New(demoID, params, now)

	q.mu.Lock()
	q.jobs[j.ID] = &memoryEntry{job: j, expiresAt: now.Add(q.ttl)}
	q.pending = append(q.pending, j.ID)
	q.mu.Unlock()

	q.signal()
	q.logger.Debug("job enqueued", zap.String("job_id", j.ID), zap.String("demo_id", demoID))
	return j.ID, nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*job.Job, error) {
	for {
		q.mu.Lock()
		j, more := q.popLocked()
		q.mu.Unlock()

		if more {
			// Pass the wake-up on to the next blocked worker.
			q.signal()
		}
		if j != nil {
			return j, nil
		}

		timer := time.NewTimer(q.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-q.wake:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// popLocked removes ids from the head of the pending list until it finds a
// live pending job. Ids whose record expired or was already committed are
// discarded.
func (q *MemoryQueue) popLocked() (*job.Job, bool) {
	for len(q.pending) > 0 {
		id := q.pending[0]
		q.pending[0] = ""
		q.pending = q.pending[1:]

		entry, ok := q.liveLocked(id)
		if !ok || entry.job.Status != job.StatusPending {
			continue
		}
		return entry.job.Clone(), len(q.pending) > 0
	}
	return nil, false
}

func (q *MemoryQueue) MarkRunning(_ context.Context, id string) (*job.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.liveLocked(id)
	if !ok {
		return nil, notFound(id)
	}
	if err := entry.job.MarkRunning(q.now()); err != nil {
		return nil, err
	}
	return entry.job.Clone(), nil
}

func (q *MemoryQueue) Get(_ context.Context, id string) (*job.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.liveLocked(id)
	if !ok {
		return nil, notFound(id)
	}
	return entry.job.Clone(), nil
}

func (q *MemoryQueue) Commit(_ context.Context, id string, status job.Status, result *job.Result, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.liveLocked(id)
	if !ok {
		return notFound(id)
	}
	return entry.job.Finish(status, result, errMsg, q.now())
}

// Sweep drops every expired record and returns how many were removed.
func (q *MemoryQueue) Sweep() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	removed := 0
	for id, entry := range q.jobs {
		if !now.Before(entry.expiresAt) {
			delete(q.jobs, id)
			removed++
		}
	}

	live := q.pending[:0]
	for _, id := range q.pending {
		if _, ok := q.jobs[id]; ok {
			live = append(live, id)
		}
	}
	clear(q.pending[len(live):])
	q.pending = live
	return removed
}

// RunJanitor calls Sweep every interval until ctx is done.
func (q *MemoryQueue) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := q.Sweep(); n > 0 {
				q.logger.Debug("expired jobs removed", zap.Int("count", n))
			}
		}
	}
}

// Len returns the number of retained records, expired ones included until
// they are swept.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *MemoryQueue) Close() error {
	return nil
}

func (q *MemoryQueue) liveLocked(id string) (*memoryEntry, bool) {
	entry, ok := q.jobs[id]
	if !ok {
		return nil, false
	}
	if !q.now().Before(entry.expiresAt) {
		delete(q.jobs, id)
		return nil, false
	}
	return entry, true
}

func (q *MemoryQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
