package heap

import (
	"context"
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/pxt-runtime/errors"
)

// MaxFields bounds the field count of records and closures.
const MaxFields = 255

// Machine executes compiled code. self is the invoked closure, or Null for a
// closure without captures, and env views its captured fields.
type Machine interface {
	Call(ctx context.Context, entry Entry, self Handle, env Captures, arg int32) int32
}

// EventType identifies an object lifecycle event.
type EventType uint8

const (
	EventAllocated EventType = iota
	EventDestroyed
)

// Event is an object lifecycle notification.
type Event struct {
	Object Object
	Type   EventType
}

// Observer receives object lifecycle events.
type Observer interface {
	OnObjectEvent(Event)
}

// Stats summarizes allocation activity.
type Stats struct {
	Live       int
	Allocated  uint64
	Destroyed  uint64
	SoftErrors uint64
}

// Options configures a Heap.
type Options struct {
	Machine Machine
	Sink    errors.Sink
	Logger  *zap.Logger
	// Code is the read-only code stream closures point into.
	Code []uint16
	// TrackObjects keeps every live object reachable for Dump.
	TrackObjects bool
}

// Heap is the process-wide object context.
type Heap struct {
	machine   Machine
	sink      errors.Sink
	logger    *zap.Logger
	objects   map[Object]struct{}
	code      []uint16
	observers []Observer
	stats     Stats
	nextID    uint32
}

// New creates a heap. Without a sink, fatal errors panic with the *errors.Error.
func New(opts Options) *Heap {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := opts.Sink
	if sink == nil {
		sink = errors.PanicSink{Logger: logger}
	}
	h := &Heap{
		machine: opts.Machine,
		sink:    sink,
		logger:  logger,
		code:    opts.Code,
	}
	if opts.TrackObjects {
		h.objects = make(map[Object]struct{})
	}
	return h
}

// SetMachine attaches the executor for compiled code. Executors that call
// back into the heap are created after it.
func (h *Heap) SetMachine(m Machine) {
	h.machine = m
}

// Code returns the code stream.
func (h *Heap) Code() []uint16 {
	return h.code
}

func (h *Heap) Logger() *zap.Logger {
	return h.logger
}

func (h *Heap) Sink() errors.Sink {
	return h.sink
}

func (h *Heap) Stats() Stats {
	return h.stats
}

// Subscribe adds an observer for lifecycle events.
func (h *Heap) Subscribe(o Observer) {
	h.observers = append(h.observers, o)
}

// Unsubscribe removes an observer.
func (h *Heap) Unsubscribe(o Observer) {
	for i, obs := range h.observers {
		if obs == o {
			h.observers = append(h.observers[:i], h.observers[i+1:]...)
			return
		}
	}
}

// Dump prints every live object in allocation order. It prints nothing
// unless the heap was created with TrackObjects.
func (h *Heap) Dump(w io.Writer) {
	live := make([]Object, 0, len(h.objects))
	for o := range h.objects {
		live = append(live, o)
	}
	sort.Slice(live, func(i, j int) bool { return live[i].base().id < live[j].base().id })
	for _, o := range live {
		o.Print(w)
	}
}

// Fail reports a fatal error through the heap's sink. It does not return.
func (h *Heap) Fail(err *errors.Error) {
	h.fail(err)
}

func (h *Heap) fail(err *errors.Error) {
	errors.Fatal(h.sink, err)
}

// warn records a tolerated failure; execution continues.
func (h *Heap) warn(err *errors.Error) {
	h.stats.SoftErrors++
	h.logger.Warn("soft runtime error",
		zap.Int("code", int(err.Code)),
		zap.Int("subcode", err.Subcode),
		zap.String("site", err.Site),
		zap.String("detail", err.Detail))
}

func (h *Heap) checkSize(site string, reflen, total int) {
	if reflen < 0 || reflen > total {
		h.fail(errors.BadSize(site, errors.SubSizeRefLen, reflen, total))
	}
	if total > MaxFields {
		h.fail(errors.BadSize(site, errors.SubSizeTotalLen, reflen, total))
	}
}

// track initializes the header of a freshly allocated object.
func (h *Heap) track(o Object) {
	b := o.base()
	h.nextID++
	b.heap = h
	b.id = h.nextID
	b.refcnt = 1

	h.stats.Live++
	h.stats.Allocated++
	if h.objects != nil {
		h.objects[o] = struct{}{}
	}
	h.notify(Event{Object: o, Type: EventAllocated})
}

func (h *Heap) release(o Object) {
	o.destroy()

	h.stats.Live--
	h.stats.Destroyed++
	if h.objects != nil {
		delete(h.objects, o)
	}
	h.notify(Event{Object: o, Type: EventDestroyed})
}

func (h *Heap) notify(e Event) {
	for _, o := range h.observers {
		o.OnObjectEvent(e)
	}
}
