package worker

import (
	"context"
	"log/slog"
	"sync"
)

// WorkerManager owns the lifecycle of the long-running workers.
type WorkerManager struct {
	workers map[string]context.CancelFunc
	wg      *sync.WaitGroup
	mu      sync.Mutex

	managerContext context.Context
	managerCancel  context.CancelFunc
}

// NewWorkerManager creates a manager whose workers stop when parent is done
func NewWorkerManager(parent context.Context) *WorkerManager {
	ctx, cancel := context.WithCancel(parent)
	return &WorkerManager{
		workers:        make(map[string]context.CancelFunc),
		wg:             new(sync.WaitGroup),
		managerContext: ctx,
		managerCancel:  cancel,
	}
}

func (m *WorkerManager) ManagerContext() context.Context {
	return m.managerContext
}

func (m *WorkerManager) Start(w Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := w.GetName()
	if _, exists := m.workers[name]; exists {
		slog.Warn("Worker already running, skipping start", "worker", name)
		return
	}

	ctx, cancel := context.WithCancel(m.managerContext)
	m.workers[name] = cancel
	m.wg.Add(1)
	slog.Info("Starting worker", "worker", name)
	go w.Run(ctx, m.wg)
}

func (m *WorkerManager) Stop(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cancel, exists := m.workers[name]
	if !exists {
		slog.Warn("Worker not found, cannot stop", "worker", name)
		return
	}
	slog.Info("Stopping worker", "worker", name)
	cancel()
	delete(m.workers, name)
}

func (m *WorkerManager) Running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.workers))
	for name := range m.workers {
		names = append(names, name)
	}
	return names
}

// Shutdown cancels every worker and waits for in-flight runs to finish.
func (m *WorkerManager) Shutdown() {
	slog.Info("Worker manager initiating shutdown")
	m.managerCancel()
	m.wg.Wait()
	slog.Info("Worker manager shutdown complete")
}
