// Package schedule runs periodic in-process jobs such as nightly
// sweeps and reconciliation passes.
//
// A Schedule computes the next run time; the Runner polls registered
// jobs and executes the ones that are due. Job failures and panics are
// logged and the job simply runs again at its next scheduled time, so
// jobs must be idempotent.
//
// Usage:
//
//	runner := schedule.NewRunner(schedule.WithLogger(log))
//	_ = runner.AddJob("expiry-sweep", schedule.DailyAt(3, 0, time.UTC), sweepFn)
//	go runner.Start(ctx)
package schedule
