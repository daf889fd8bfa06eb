package runtime

import (
	"context"
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/pxt-runtime/errors"
	"github.com/wippyai/pxt-runtime/event"
	"github.com/wippyai/pxt-runtime/fiber"
	"github.com/wippyai/pxt-runtime/heap"
	"github.com/wippyai/pxt-runtime/image"
	"github.com/wippyai/pxt-runtime/machine"
	"github.com/wippyai/pxt-runtime/resource"
)

// Options configures a Runtime.
type Options struct {
	Logger *zap.Logger
	Sink   errors.Sink
	// Machine runs closure bodies of images without a guest.
	Machine heap.Machine
	// EventQueue bounds undelivered events; 0 selects event.DefaultCapacity.
	EventQueue       int
	MemoryLimitPages uint32
	TrackObjects     bool
}

// Stats is a snapshot of runtime activity.
type Stats struct {
	Heap       heap.Stats
	Queue      event.QueueStats
	Handlers   int
	Dispatched uint64
	Fibers     int
	Finished   uint64
	Resources  int
}

// Runtime is the process-wide context of one running program.
type Runtime struct {
	img       *image.Image
	logger    *zap.Logger
	sink      errors.Sink
	heap      *heap.Heap
	globals   []uint32
	wasm      *machine.Wasm
	queue     *event.Queue
	table     *event.Table
	loop      *fiber.Loop
	bridge    *fiber.Bridge
	resources *resource.Store
}

// New boots img. An invalid image header is fatal and goes to the sink.
func New(ctx context.Context, img *image.Image, opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := opts.Sink
	if sink == nil {
		sink = errors.PanicSink{Logger: logger}
	}

	if err := img.Validate(); err != nil {
		if fe, ok := errors.AsFatal(err); ok {
			errors.Fatal(sink, fe)
		}
		return nil, err
	}

	r := &Runtime{
		img:     img,
		logger:  logger,
		sink:    sink,
		globals: make([]uint32, img.Header.NumGlobals),
		heap: heap.New(heap.Options{
			Sink:         sink,
			Logger:       logger.Named("heap"),
			Code:         img.Code,
			TrackObjects: opts.TrackObjects,
		}),
		queue: event.NewQueue(opts.EventQueue, logger.Named("queue")),
		loop:  fiber.NewLoop(logger.Named("fiber")),
		resources: resource.NewStore(resource.Options{
			Sink:   sink,
			Logger: logger.Named("resource"),
		}),
	}
	r.table = event.NewTable(r.heap, r.queue, logger.Named("events"))
	r.bridge = fiber.NewBridge(r.heap, r.loop, logger.Named("fiber"))

	switch {
	case len(img.Guest) > 0:
		w, err := machine.NewWasm(ctx, img.Guest, machine.WasmConfig{
			Heap:             r.heap,
			Host:             r,
			Logger:           logger.Named("wasm"),
			Globals:          r.globals,
			Resources:        r.resources,
			MemoryLimitPages: opts.MemoryLimitPages,
		})
		if err != nil {
			return nil, fmt.Errorf("load guest: %w", err)
		}
		r.wasm = w
		r.heap.SetMachine(w)
	case opts.Machine != nil:
		r.heap.SetMachine(opts.Machine)
	default:
		return nil, fmt.Errorf("image has no guest and no machine was given")
	}

	logger.Info("runtime ready",
		zap.Uint16("globals", img.Header.NumGlobals),
		zap.Int("code_words", len(img.Code)),
		zap.Bool("wasm", r.wasm != nil))
	return r, nil
}

// Start runs the main entry, then every fiber it spawned, and returns the
// entry's result. Images without a main entry return 0.
func (r *Runtime) Start(ctx context.Context) int32 {
	if r.img.Header.Main == image.NoMain {
		return 0
	}
	result := r.heap.RunAction(ctx, r.heap.MkAction(0, 0, r.img.Header.Main), 0)
	r.loop.RunPending(ctx)
	return result
}

// Step delivers queued events and runs pending fibers once. It returns the
// number of events taken and fibers run.
func (r *Runtime) Step(ctx context.Context) (events, fibers int, err error) {
	events, err = r.queue.Pump(ctx)
	if err != nil {
		return events, 0, err
	}
	fibers = r.loop.RunPending(ctx)
	return events, fibers, ctx.Err()
}

// Run steps until ctx is done or the event queue is closed and drained.
func (r *Runtime) Run(ctx context.Context) error {
	for {
		if _, _, err := r.Step(ctx); err != nil {
			return err
		}
		if r.loop.Pending() > 0 {
			continue
		}
		if err := r.queue.Wait(ctx); err != nil {
			if stderrors.Is(err, event.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

// Post raises an event. It fails when the queue is full or closed.
func (r *Runtime) Post(source, value int32) error {
	return r.queue.Post(event.Event{Source: source, Value: value})
}

// RegisterHandler installs action for (source, value).
func (r *Runtime) RegisterHandler(source, value int32, action heap.Handle) error {
	return r.table.Register(source, value, action)
}

// RunInBackground schedules action on the fiber loop.
func (r *Runtime) RunInBackground(action heap.Handle) {
	r.bridge.RunInBackground(action)
}

// Text wraps s as an external counted value owned by the caller.
func (r *Runtime) Text(s string) heap.Handle {
	ref := r.resources.New(resource.TypeText, s)
	if ref == nil {
		return heap.Null
	}
	return heap.External(ref)
}

// Shutdown stops accepting events; Run returns once the queue drains.
func (r *Runtime) Shutdown() {
	r.queue.Close()
}

func (r *Runtime) Globals() []uint32 { return r.globals }

func (r *Runtime) Heap() *heap.Heap { return r.heap }

func (r *Runtime) Events() *event.Table { return r.table }

func (r *Runtime) Fibers() *fiber.Loop { return r.loop }

func (r *Runtime) Resources() *resource.Store { return r.resources }

func (r *Runtime) Image() *image.Image { return r.img }

// Wasm returns the guest executor, or nil for native programs.
func (r *Runtime) Wasm() *machine.Wasm { return r.wasm }

func (r *Runtime) Stats() Stats {
	return Stats{
		Heap:       r.heap.Stats(),
		Queue:      r.queue.Stats(),
		Handlers:   r.table.Len(),
		Dispatched: r.table.Dispatched(),
		Fibers:     r.loop.Active(),
		Finished:   r.loop.Finished(),
		Resources:  r.resources.Len(),
	}
}

// Close releases handlers, external values and the guest.
func (r *Runtime) Close(ctx context.Context) error {
	r.queue.Close()
	r.table.Close()
	err := r.resources.Close()
	if r.wasm != nil {
		if werr := r.wasm.Close(ctx); werr != nil && err == nil {
			err = werr
		}
	}
	r.logger.Debug("runtime closed", zap.Int("live_objects", r.heap.Stats().Live))
	return err
}

var _ machine.Host = (*Runtime)(nil)
