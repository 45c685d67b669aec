// Package queue provides the job queue and status store.
//
// A Manager stores every Job from submission until its TTL lapses and
// delivers each pending job to exactly one Dequeue caller. Delivery is
// at-most-once: nothing is ever re-delivered, and a worker that dies after
// Dequeue leaves its job in running until the record expires. Two backends
// are available: an in-process MemoryQueue and a RedisQueue for deployments
// where the service and its workers share a Redis instance.
//
// Usage:
//
//	q := queue.NewMemoryQueue(logger, time.Hour)
//	id, err := q.Enqueue(ctx, "dns-query", json.RawMessage(`{"domain":"example.com"}`))
//	j, err := q.Dequeue(ctx)
//	j, err = q.MarkRunning(ctx, j.ID)
//	err = q.Commit(ctx, j.ID, job.StatusCompleted, result, "")
package queue
