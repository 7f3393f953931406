package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// CronWorker runs calendar-based jobs, such as the nightly budget restoration, in a
// fixed time zone.
type CronWorker struct {
	name  string
	cron  *cron.Cron
	lease Lease
	ttl   time.Duration
}

// NewCronWorker creates a cron worker firing in loc
func NewCronWorker(name string, loc *time.Location, lease Lease) *CronWorker {
	if loc == nil {
		loc = time.UTC
	}
	return &CronWorker{
		name:  name,
		cron:  cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		lease: lease,
		ttl:   10 * time.Minute,
	}
}

// AddJob registers job under a standard five-field cron spec. Each run gets a context
// that is cancelled on shutdown.
func (w *CronWorker) AddJob(ctx context.Context, jobName, spec string, job Job) error {
	leaseKey := fmt.Sprintf("automation:cron:%s", jobName)
	_, err := w.cron.AddFunc(spec, func() {
		slog.Info("Cron job fired", "worker", w.name, "job", jobName)
		_ = runLeased(ctx, jobName, w.lease, leaseKey, w.ttl, job)
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q for %s: %w", spec, jobName, err)
	}
	slog.Info("Cron job registered", "worker", w.name, "job", jobName, "spec", spec)
	return nil
}

func (w *CronWorker) GetName() string {
	return w.name
}

// Next reports when the first registered job fires next.
func (w *CronWorker) Next() time.Time {
	entries := w.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return w.cron.Entry(entries[0].ID).Next
}

func (w *CronWorker) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	w.cron.Start()
	slog.Info("Cron worker running", "worker", w.name, "next_run", w.Next())

	<-ctx.Done()
	slog.Info("Cron worker shutting down, waiting for running jobs", "worker", w.name)
	<-w.cron.Stop().Done()
}
