package analysis

import (
	"context"
	"log"
	"sync"

	"github.com/logcentral/platform/model"
	"github.com/logcentral/platform/notification"
	"github.com/logcentral/platform/repository"
)

// Worker analyzes error-level entries off the request path. Submissions go
// through a bounded queue consumed by a fixed pool, so an error burst can
// never fan out into unbounded goroutines. Failures are logged and never
// reach the caller that ingested the log.
type Worker struct {
	svc      Service
	logs     repository.LogRepository
	services repository.ServiceRepository
	notifier notification.Service

	jobs   chan *model.LogEntry
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu       sync.Mutex
	draining bool

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWorker builds a Worker with the given pool size and queue capacity.
func NewWorker(svc Service, logs repository.LogRepository, services repository.ServiceRepository, notifier notification.Service, workers, queueSize int) *Worker {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	w := &Worker{
		svc:      svc,
		logs:     logs,
		services: services,
		notifier: notifier,
		jobs:     make(chan *model.LogEntry, queueSize),
	}
	w.startWorkers(workers)
	return w
}

func (w *Worker) startWorkers(n int) {
	w.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		w.cancel = cancel
		for i := 0; i < n; i++ {
			w.wg.Add(1)
			go w.run(ctx)
		}
	})
}

// Submit queues an entry for analysis without blocking. It reports false
// when the queue is full or the worker has stopped; the entry simply stays
// unanalyzed until an operator re-triggers it. The mutex keeps the send and
// the channel close in Stop mutually exclusive.
func (w *Worker) Submit(entry *model.LogEntry) bool {
	if entry == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.draining {
		return false
	}
	select {
	case w.jobs <- entry:
		return true
	default:
		log.Printf("analysis: queue full, dropping analysis of log %s", entry.ID)
		return false
	}
}

// Stop drains queued work and waits for in-flight analyses to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.draining = true
		close(w.jobs)
		w.mu.Unlock()
		w.wg.Wait()
		if w.cancel != nil {
			w.cancel()
		}
	})
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	for entry := range w.jobs {
		w.process(ctx, entry)
	}
}

func (w *Worker) process(ctx context.Context, entry *model.LogEntry) {
	result, err := w.svc.AnalyzeLog(ctx, entry)
	if err != nil {
		log.Printf("analysis: failed for log %s: %v", entry.ID, err)
		return
	}

	if _, err := w.logs.UpdateAIAnalysis(entry.ID, result.Summary); err != nil {
		log.Printf("analysis: could not persist result for log %s: %v", entry.ID, err)
		return
	}

	w.dispatchAlert(ctx, entry, result.Summary)
}

func (w *Worker) dispatchAlert(ctx context.Context, entry *model.LogEntry, summary string) {
	if w.notifier == nil || w.services == nil {
		return
	}
	service, err := w.services.GetByID(entry.ServiceID)
	if err != nil {
		log.Printf("analysis: alert lookup failed for service %s: %v", entry.ServiceID, err)
		return
	}
	if !service.AlertsEnabled || entry.Level < service.AlertThreshold {
		return
	}
	if err := w.notifier.NotifyLogAlert(ctx, service, entry, summary); err != nil {
		log.Printf("analysis: alert dispatch failed for log %s: %v", entry.ID, err)
	}
}
