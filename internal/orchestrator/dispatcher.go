package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"specgen/internal/common/logger"
)

var (
	ErrQueueFull        = errors.New("QUEUE_FULL")
	ErrDispatcherClosed = errors.New("DISPATCHER_CLOSED")
)

// Task is one unit of background work. ctx is cancelled when the dispatcher
// shuts down without draining in time.
type Task func(ctx context.Context)

// Dispatcher runs tasks on a fixed pool of goroutines fed by a bounded queue.
type Dispatcher struct {
	queue  chan Task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	logger logger.Logger
}

func NewDispatcher(workers, queueSize int, log logger.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		queue:  make(chan Task, queueSize),
		ctx:    ctx,
		cancel: cancel,
		logger: log.With(map[string]interface{}{"component": "dispatcher"}),
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work(i)
	}
	return d
}

func (d *Dispatcher) work(id int) {
	defer d.wg.Done()
	for task := range d.queue {
		d.runTask(id, task)
	}
}

func (d *Dispatcher) runTask(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("task panicked", map[string]interface{}{
				"worker": id,
				"panic":  fmt.Sprint(r),
			})
		}
	}()

	ctx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	task(ctx)
}

// Submit enqueues task without blocking. It fails with ErrQueueFull when every
// worker is busy and the queue is at capacity.
func (d *Dispatcher) Submit(task Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting tasks and waits for queued and running tasks. If ctx
// ends first, running tasks are cancelled and Shutdown returns ctx.Err() once
// they have returned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.logger.Warn("shutdown deadline reached, cancelling running tasks", nil)
		d.cancel()
		<-done
		return ctx.Err()
	}
}
