package link

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelrail/go-trackside/logger"
)

// TaskFunc represents a function that performs one iteration of a task
// within a goroutine managed by the TaskManager. It should return true to
// continue running the task, or false to stop the goroutine.
type TaskFunc func() bool

// TaskManager manages the lifecycle of the goroutines a link manager runs:
// the socket run loop and any auxiliary loops the embedding application
// registers. It provides a structured way to start, stop, and wait for
// goroutines, ensuring proper cancellation and cleanup.
//
// The TaskManager uses a context.Context to manage the lifecycle of the
// goroutines. When the context is canceled, all running goroutines are
// signaled to stop. A sync.WaitGroup lets Wait() block until every
// goroutine has terminated.
type TaskManager struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	mu     sync.RWMutex // protect ctx and cancel
	taskMu sync.RWMutex // protect task creation during Wait()
}

// NewTaskManager creates a new TaskManager with the given context as the parent context and logger.
func NewTaskManager(ctx context.Context, l logger.Logger) *TaskManager {
	mgr := &TaskManager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)
	return mgr
}

// getContext safely returns the current context.
func (mgr *TaskManager) getContext() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start starts a new goroutine with the given name and task function.
//
// The taskFunc should return true to continue running, or false to stop the
// goroutine. The optional cancelFunc is invoked when the goroutine exits.
func (mgr *TaskManager) Start(name string, taskFunc TaskFunc, cancelFunc func()) error {
	mgr.logger.Debug("start task", "name", name)

	ctx := mgr.getContext()
	select {
	case <-ctx.Done():
		return fmt.Errorf("task manager already stopped")
	default:
	}

	started := make(chan error, 1)

	mgr.taskMu.RLock()
	mgr.wg.Add(1)

	go func() {
		defer mgr.wg.Done()

		mgr.count.Add(1)
		started <- nil

		defer func() {
			if cancelFunc != nil {
				cancelFunc()
			}
			mgr.count.Add(-1)
			mgr.logger.Debug(fmt.Sprintf("%s task terminated", name), "task_count", mgr.TaskCount())
		}()

		mgr.runTaskLoop(taskFunc)
	}()
	mgr.taskMu.RUnlock()

	select {
	case err := <-started:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for %s to start", name)
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while starting %s", name)
	}
}

// Stop signals all running goroutines.
func (mgr *TaskManager) Stop() {
	mgr.mu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.mu.Unlock()
}

// Wait waits for all goroutines to terminate, then re-arms the manager for
// a subsequent Start.
func (mgr *TaskManager) Wait() {
	mgr.taskMu.Lock()
	defer mgr.taskMu.Unlock()

	mgr.wg.Wait()

	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// TaskCount returns the number of currently running goroutines.
func (mgr *TaskManager) TaskCount() int {
	return int(mgr.count.Load())
}

// runTaskLoop runs a task function in a loop with context cancellation and
// panic protection.
func (mgr *TaskManager) runTaskLoop(taskFunc TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task loop", "panic", r)
		}
	}()

	for {
		ctx := mgr.getContext()
		select {
		case <-ctx.Done():
			return
		default:
			if !taskFunc() {
				return
			}
		}
	}
}
