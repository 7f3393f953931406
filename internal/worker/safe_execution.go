package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// safeExecution runs job and turns a panic into an error so a worker never dies.
func safeExecution(ctx context.Context, name string, job Job) (err error) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic recovered in job", "worker", name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("job %s panicked: %v", name, r)
		}
	}()

	err = job(ctx)
	if err != nil {
		slog.Error("Error executing job", "worker", name, "error", err, "duration", time.Since(started))
		return err
	}
	slog.Debug("Finished job", "worker", name, "duration", time.Since(started))
	return nil
}

// RunExclusive runs job while holding key. The job context is cancelled if the lease
// is lost. A nil lease runs job directly.
func RunExclusive(ctx context.Context, lease Lease, key string, ttl time.Duration, job Job) error {
	if lease == nil {
		return job(ctx)
	}

	leaseCtx, release, ok, err := lease.Acquire(ctx, key, ttl)
	if err != nil {
		return fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	if !ok {
		return ErrLeaseHeld
	}
	defer release()
	return job(leaseCtx)
}

// runLeased is RunExclusive for background workers: a lease held elsewhere skips the
// run quietly and panics are recovered.
func runLeased(ctx context.Context, name string, lease Lease, key string, ttl time.Duration, job Job) error {
	ran := false
	err := RunExclusive(ctx, lease, key, ttl, func(ctx context.Context) error {
		ran = true
		return safeExecution(ctx, name, job)
	})
	if errors.Is(err, ErrLeaseHeld) {
		slog.Debug("Lease held by another run, skipping", "worker", name, "key", key)
		return nil
	}
	if err != nil && !ran {
		slog.Warn("Failed to acquire lease, skipping run", "worker", name, "key", key, "error", err)
	}
	return err
}
