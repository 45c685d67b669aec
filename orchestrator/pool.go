package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/queue"
)

const dequeueBackoff = time.Second

// Pool runs a fixed number of workers, each looping Dequeue then Run.
type Pool struct {
	queue  queue.Manager
	orch   *Orchestrator
	logger *zap.Logger
	size   int

	mu     sync.Mutex
	stop   context.CancelFunc // stops dequeuing
	abort  context.CancelFunc // kills in-flight jobs
	wg     sync.WaitGroup
	active bool
}

// NewPool creates a Pool of size workers
func NewPool(q queue.Manager, orch *Orchestrator, logger *zap.Logger, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		queue:  q,
		orch:   orch,
		logger: logger,
		size:   size,
	}
}

// Start launches the workers. Calling Start on a running pool does nothing.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		return
	}

	dequeueCtx, stop := context.WithCancel(context.Background())
	jobCtx, abort := context.WithCancel(context.Background())
	p.stop, p.abort, p.active = stop, abort, true

	for i := range p.size {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.work(i, dequeueCtx, jobCtx)
		}()
	}
	p.logger.Info("worker pool started", zap.Int("workers", p.size))
}

// Stop stops dequeuing and waits for in-flight jobs. If ctx ends first, the
// remaining sandboxes are killed and their jobs fail.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return nil
	}
	p.active = false
	stop, abort := p.stop, p.abort
	p.mu.Unlock()

	stop()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		abort()
		p.logger.Info("worker pool stopped")
		return nil
	case <-ctx.Done():
		p.logger.Warn("aborting in-flight jobs")
		abort()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) work(id int, dequeueCtx, jobCtx context.Context) {
	log := p.logger.With(zap.Int("worker", id))
	for {
		j, err := p.queue.Dequeue(dequeueCtx)
		if err != nil {
			if dequeueCtx.Err() != nil {
				return
			}
			log.Error("dequeue failed", zap.Error(err))
			select {
			case <-dequeueCtx.Done():
				return
			case <-time.After(dequeueBackoff):
			}
			continue
		}

		log.Debug("job dequeued", zap.String("job_id", j.ID))
		p.orch.Run(jobCtx, j)
	}
}
