// Package loop provides the single goroutine on which all view state is mutated
// and observed. Tasks run one at a time in submission order, so code running on
// the loop needs no locks.
package loop

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrStopped is returned when submitting to a loop that is no longer running
var ErrStopped = errors.New("event loop stopped")

// Dispatcher accepts tasks for later execution on the loop
type Dispatcher interface {
	Post(task func()) bool
}

// Loop is an unbounded FIFO of tasks drained by Run
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool
	wake    chan struct{}
	done    chan struct{}
	log     *logrus.Entry
}

// New creates a loop. Run must be called for tasks to execute.
func New(log *logrus.Entry) *Loop {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		log:  log.WithField("component", "loop"),
	}
}

// Post queues a task. It never blocks, so tasks running on the loop may post
// follow-up tasks. Returns false once the loop has stopped.
func (l *Loop) Post(task func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs task on the loop and waits for it to finish. It must not be called
// from a task already running on the loop.
func (l *Loop) Do(ctx context.Context, task func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		task()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes queued tasks until ctx is cancelled. Tasks still queued at
// that point are dropped.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()
		close(l.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
			for {
				task, ok := l.next()
				if !ok {
					break
				}
				l.run(task)
				if ctx.Err() != nil {
					return ctx.Err()
				}
			}
		}
	}
}

// Done is closed when Run returns
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

// run keeps the loop alive when a task panics
func (l *Loop) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.WithField("panic", r).Errorf("task panicked\n%s", debug.Stack())
		}
	}()
	task()
}
