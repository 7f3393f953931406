package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const SchedulerLeaseKey = "automation:scheduler:lease"

// JobScheduler runs a single job on a fixed interval. Ticks never overlap: a tick that
// fires while the previous run is still going is dropped by the ticker.
type JobScheduler struct {
	Name           string
	Interval       time.Duration
	Job            Job
	Lease          Lease
	LeaseKey       string
	LeaseTTL       time.Duration
	RunImmediately bool
}

// NewJobScheduler creates a scheduler that runs job immediately and then every interval
func NewJobScheduler(name string, interval time.Duration, job Job) *JobScheduler {
	return &JobScheduler{
		Name:           name,
		Interval:       interval,
		Job:            job,
		LeaseKey:       SchedulerLeaseKey,
		LeaseTTL:       interval,
		RunImmediately: true,
	}
}

// WithLease makes every tick first take the distributed lease.
func (s *JobScheduler) WithLease(lease Lease, ttl time.Duration) *JobScheduler {
	s.Lease = lease
	if ttl > 0 {
		s.LeaseTTL = ttl
	}
	return s
}

func (s *JobScheduler) GetName() string {
	return s.Name
}

func (s *JobScheduler) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	slog.Info("Scheduler running", "scheduler", s.Name, "interval", s.Interval)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	if s.RunImmediately {
		s.tick(ctx)
	}

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			slog.Info("Scheduler shutting down", "scheduler", s.Name)
			return
		}
	}
}

func (s *JobScheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_ = runLeased(ctx, s.Name, s.Lease, s.LeaseKey, s.LeaseTTL, s.Job)
}
