// Package async runs background work on a bounded worker pool.
//
// Tasks get a fresh context with the pool timeout rather than the caller's
// context, so work submitted from a request handler keeps running after the
// response is written. A panicking task is logged and the worker keeps
// serving the queue.
//
//	pool := async.NewPool("audit-db", 2, 1024, 5*time.Second, logger)
//	defer pool.Shutdown(ctx)
//
//	if err := pool.Submit(func(ctx context.Context) error {
//		return sink.Log(ctx, event)
//	}); err != nil {
//		logger.WithError(err).Warn("Audit event dropped")
//	}
package async
