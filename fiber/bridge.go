package fiber

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/pxt-runtime/heap"
)

// Bridge starts actions in the background on a Scheduler.
type Bridge struct {
	heap   *heap.Heap
	sched  Scheduler
	logger *zap.Logger
}

func NewBridge(h *heap.Heap, sched Scheduler, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{heap: h, sched: sched, logger: logger}
}

// RunInBackground schedules action to run with argument 0 and returns
// without waiting. The bridge holds a reference until the run completes.
// A null action is ignored.
func (b *Bridge) RunInBackground(action heap.Handle) {
	if action.IsNull() {
		return
	}
	heap.Incr(action)
	b.logger.Debug("background action", zap.Stringer("action", action))
	b.sched.Spawn(
		func(ctx context.Context) { b.heap.RunAction(ctx, action, 0) },
		func() { heap.Decr(action) },
	)
}
