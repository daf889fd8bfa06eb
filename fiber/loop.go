package fiber

import (
	"context"

	"go.uber.org/zap"
)

// Scheduler runs work in a separate execution context and calls done when
// the work completes.
type Scheduler interface {
	Spawn(run func(ctx context.Context), done func())
}

type fiber struct {
	run  func(ctx context.Context)
	done func()
	id   uint64
}

// Loop is a cooperative FIFO scheduler driven by the caller's goroutine.
type Loop struct {
	logger   *zap.Logger
	queue    []fiber
	active   int
	spawned  uint64
	finished uint64
}

// NewLoop creates an idle loop.
func NewLoop(logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{logger: logger}
}

// Spawn queues run. It returns immediately.
func (l *Loop) Spawn(run func(ctx context.Context), done func()) {
	l.spawned++
	l.active++
	l.queue = append(l.queue, fiber{run: run, done: done, id: l.spawned})
}

// RunPending runs queued fibers until none are left, including fibers
// spawned along the way, and returns how many ran. A cancelled context stops
// the loop between fibers; the rest stay queued.
func (l *Loop) RunPending(ctx context.Context) int {
	n := 0
	for len(l.queue) > 0 {
		if ctx.Err() != nil {
			break
		}
		f := l.queue[0]
		l.queue[0] = fiber{}
		l.queue = l.queue[1:]

		l.logger.Debug("fiber start", zap.Uint64("fiber", f.id))
		f.run(ctx)
		if f.done != nil {
			f.done()
		}
		l.active--
		l.finished++
		n++
	}
	if len(l.queue) == 0 {
		l.queue = nil
	}
	return n
}

// Pending returns the number of fibers waiting to run.
func (l *Loop) Pending() int {
	return len(l.queue)
}

// Active returns the number of fibers spawned but not yet finished.
func (l *Loop) Active() int {
	return l.active
}

// Finished returns the number of fibers that ran to completion.
func (l *Loop) Finished() uint64 {
	return l.finished
}
