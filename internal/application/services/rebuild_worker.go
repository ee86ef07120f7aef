package services

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const rebuildQueueSize = 64

// RebuildWorker processes asynchronous cache-invalidation requests. Writers
// enqueue a project id after source data changes; the worker drops both
// cached namespaces and recomputes fresh snapshots in the background so the
// next read is warm. Duplicate requests for a project already queued are
// suppressed.
type RebuildWorker struct {
	analytics *AnalyticsService
	logger    *zap.Logger

	queue chan rebuildTask

	mu       sync.Mutex
	inflight map[string]bool

	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	startOnce sync.Once
	started   atomic.Bool
}

type rebuildTask struct {
	taskID    string
	projectID string
}

// NewRebuildWorker creates a worker; Start must be called before Enqueue
// has any effect.
func NewRebuildWorker(analytics *AnalyticsService, logger *zap.Logger) *RebuildWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RebuildWorker{
		analytics: analytics,
		logger:    logger,
		queue:     make(chan rebuildTask, rebuildQueueSize),
		inflight:  make(map[string]bool),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the worker goroutine. Subsequent calls are no-ops.
func (w *RebuildWorker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.started.Store(true)
		go func() {
			defer close(w.done)
			for {
				select {
				case <-w.stop:
					return
				case <-ctx.Done():
					return
				case task := <-w.queue:
					w.process(ctx, task)
				}
			}
		}()
	})
}

// Stop signals the worker to exit and waits for the in-progress task. Safe
// to call on a worker that was never started.
func (w *RebuildWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	if w.started.Load() {
		<-w.done
	}
}

// Enqueue schedules a rebuild for projectID. Returns the task id, or empty
// when the request was suppressed as a duplicate or the queue is full.
func (w *RebuildWorker) Enqueue(projectID string) string {
	if projectID == "" {
		return ""
	}

	w.mu.Lock()
	if w.inflight[projectID] {
		w.mu.Unlock()
		return ""
	}
	w.inflight[projectID] = true
	w.mu.Unlock()

	task := rebuildTask{taskID: uuid.NewString(), projectID: projectID}
	select {
	case w.queue <- task:
		w.logger.Debug("rebuild enqueued",
			zap.String("task_id", task.taskID),
			zap.String("project_id", projectID),
		)
		return task.taskID
	default:
		w.mu.Lock()
		delete(w.inflight, projectID)
		w.mu.Unlock()
		w.logger.Warn("rebuild queue full, request dropped", zap.String("project_id", projectID))
		return ""
	}
}

func (w *RebuildWorker) process(ctx context.Context, task rebuildTask) {
	defer func() {
		w.mu.Lock()
		delete(w.inflight, task.projectID)
		w.mu.Unlock()
	}()

	w.analytics.InvalidateProject(task.projectID)

	// Recompute both namespaces so the next read hits a warm cache. A
	// failure here is logged, not retried: the next request computes inline.
	opts := AnalyticsOptions{Refresh: true}
	if _, err := w.analytics.ProjectAnalytics(ctx, task.projectID, opts); err != nil {
		w.logger.Warn("rebuild analytics failed",
			zap.String("task_id", task.taskID),
			zap.String("project_id", task.projectID),
			zap.Error(err),
		)
		return
	}
	if _, err := w.analytics.ProjectCommunities(ctx, task.projectID, opts); err != nil {
		w.logger.Warn("rebuild communities failed",
			zap.String("task_id", task.taskID),
			zap.String("project_id", task.projectID),
			zap.Error(err),
		)
		return
	}
	w.logger.Info("project caches rebuilt",
		zap.String("task_id", task.taskID),
		zap.String("project_id", task.projectID),
	)
}
