package worker

import (
	"context"
	"errors"
	"sync"
	"time"
)

type (
	Job    func(ctx context.Context) error
	Worker interface {
		Run(ctx context.Context, wg *sync.WaitGroup)
		GetName() string
	}
)

var (
	// ErrLeaseHeld is returned by RunExclusive when another run holds the lease.
	ErrLeaseHeld = errors.New("lease held by another run")
	// ErrLeaseLost is the cancellation cause of a lease context whose lease expired
	// or was taken over.
	ErrLeaseLost = errors.New("lease lost")
)

// Lease guards a job so only one run holds a key at a time. When the lease is
// obtained, Acquire returns a context that is cancelled if the lease is lost, and a
// release func.
type Lease interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (leaseCtx context.Context, release func(), ok bool, err error)
}
