// Package orchestrator executes queued jobs inside sandboxes.
//
// An Orchestrator takes one dequeued job through re-validation, sandbox
// policy derivation, a single supervised runner launch, output parsing and
// exactly one terminal commit. A Pool runs a fixed number of workers, each
// looping Dequeue then Run against the shared queue.
//
// Usage:
//
//	orch := orchestrator.New(q, cat, executor, logger, orchestrator.OptionsFromConfig(cfg))
//	pool := orchestrator.NewPool(q, orch, logger, cfg.Worker.Concurrency)
//	pool.Start()
//	defer pool.Stop(ctx)
package orchestrator
