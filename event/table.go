package event

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/pxt-runtime/heap"
)

type key struct {
	source int32
	value  int32
}

// Table maps event identities to actions. It owns one reference to every
// registered action. Like the heap it is used from a single goroutine.
type Table struct {
	heap       *heap.Heap
	bus        Bus
	logger     *zap.Logger
	handlers   map[key]heap.Handle
	subscribed map[key]struct{}
	last       Event
	dispatched uint64
}

// NewTable creates an empty table that subscribes with bus on demand.
func NewTable(h *heap.Heap, bus Bus, logger *zap.Logger) *Table {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Table{
		heap:       h,
		bus:        bus,
		logger:     logger,
		handlers:   make(map[key]heap.Handle),
		subscribed: make(map[key]struct{}),
	}
}

// Register installs action for (source, value), retaining it and releasing
// the previous occupant. A null action clears the entry. The first
// registration of an identity subscribes the table with the bus.
func (t *Table) Register(source, value int32, action heap.Handle) error {
	k := key{source, value}

	prev := t.handlers[k]
	if action.IsNull() {
		delete(t.handlers, k)
	} else {
		t.handlers[k] = heap.Incr(action)
	}
	heap.Decr(prev)

	t.logger.Debug("handler registered",
		zap.Int32("source", source),
		zap.Int32("value", value),
		zap.Stringer("action", action),
		zap.Bool("replaced", !prev.IsNull()))

	if _, ok := t.subscribed[k]; ok || t.bus == nil {
		return nil
	}
	if err := t.bus.Listen(source, value, t); err != nil {
		return fmt.Errorf("listen (%d, %d): %w", source, value, err)
	}
	t.subscribed[k] = struct{}{}
	return nil
}

// Dispatch records e as the last event, then runs the exact handler for
// (e.Source, e.Value) followed by the wildcard handler for e.Source. Both
// receive e.Value, so an event whose value is Any runs the wildcard handler
// twice. Missing handlers are skipped.
func (t *Table) Dispatch(ctx context.Context, e Event) {
	t.last = e
	t.dispatched++

	if h, ok := t.handlers[key{e.Source, e.Value}]; ok {
		t.heap.RunAction(ctx, h, e.Value)
	}
	if h, ok := t.handlers[key{e.Source, Any}]; ok {
		t.heap.RunAction(ctx, h, e.Value)
	}
}

// OnEvent implements Listener.
func (t *Table) OnEvent(ctx context.Context, e Event) {
	t.Dispatch(ctx, e)
}

// Last returns the most recently dispatched event.
func (t *Table) Last() Event {
	return t.last
}

// Dispatched returns the number of events dispatched so far.
func (t *Table) Dispatched() uint64 {
	return t.dispatched
}

// Handler returns the action registered for (source, value) without adding a
// reference, or heap.Null.
func (t *Table) Handler(source, value int32) heap.Handle {
	return t.handlers[key{source, value}]
}

// Len returns the number of registered handlers.
func (t *Table) Len() int {
	return len(t.handlers)
}

// Close releases every registered action. Bus subscriptions stay in place;
// events arriving afterwards find no handler.
func (t *Table) Close() {
	for k, h := range t.handlers {
		delete(t.handlers, k)
		heap.Decr(h)
	}
}
