package machine

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/pxt-runtime/errors"
	"github.com/wippyai/pxt-runtime/heap"
	"github.com/wippyai/pxt-runtime/resource"
	"github.com/wippyai/pxt-runtime/wasm"
)

// GuestModule is the instance name of the guest program.
const GuestModule = "guest"

// Host is the part of the runtime compiled code reaches beyond the heap.
type Host interface {
	RegisterHandler(source, value int32, action heap.Handle) error
	RunInBackground(action heap.Handle)
}

var errDetached = stderrors.New("no host attached")

// detachedHost serves guests running without a runtime around them.
type detachedHost struct{}

func (detachedHost) RegisterHandler(int32, int32, heap.Handle) error { return errDetached }

func (detachedHost) RunInBackground(heap.Handle) {}

// WasmConfig configures a Wasm executor.
type WasmConfig struct {
	Heap   *heap.Heap
	Host   Host
	Logger *zap.Logger
	// Resources, when set, releases the guest words of external values the
	// store drops.
	Resources *resource.Store
	// Globals backs get_global and set_global. It is shared, not copied.
	Globals []uint32
	// MemoryLimitPages caps guest memory in 64KiB pages. 0 keeps the
	// wazero default.
	MemoryLimitPages uint32
}

// Wasm is a heap.Machine running closure bodies compiled to WebAssembly.
type Wasm struct {
	heap    *heap.Heap
	host    Host
	logger  *zap.Logger
	words   *Words
	store   *resource.Store
	runtime wazero.Runtime
	module  api.Module
	entries map[heap.Entry]string
	globals []uint32
	calls   uint64
}

// NewWasm compiles and instantiates guest. Every export named
// wasm.EntryName(offset) becomes the body of the closure entry at offset.
func NewWasm(ctx context.Context, guest []byte, cfg WasmConfig) (*Wasm, error) {
	if cfg.Heap == nil {
		return nil, fmt.Errorf("wasm machine: heap is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	host := cfg.Host
	if host == nil {
		host = detachedHost{}
	}

	rc := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	m := &Wasm{
		heap:    cfg.Heap,
		host:    host,
		logger:  logger,
		words:   NewWords(cfg.Heap.Sink()),
		store:   cfg.Resources,
		runtime: wazero.NewRuntimeWithConfig(ctx, rc),
		entries: make(map[heap.Entry]string),
		globals: cfg.Globals,
	}

	if err := m.instantiateHost(ctx); err != nil {
		m.runtime.Close(ctx)
		return nil, fmt.Errorf("instantiate host module: %w", err)
	}

	compiled, err := m.runtime.CompileModule(ctx, guest)
	if err != nil {
		m.runtime.Close(ctx)
		return nil, fmt.Errorf("compile guest: %w", err)
	}
	for name, def := range compiled.ExportedFunctions() {
		off, ok := wasm.ParseEntryName(name)
		if !ok {
			continue
		}
		if !isEntrySignature(def) {
			m.runtime.Close(ctx)
			return nil, fmt.Errorf("export %s: want (i32, i32, i32) -> i32", name)
		}
		m.entries[heap.EntryAt(off)] = name
	}

	// The heap must see the machine before a start function runs.
	m.subscribe()
	mod, err := m.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(GuestModule))
	if err != nil {
		m.unsubscribe()
		m.runtime.Close(ctx)
		return nil, fmt.Errorf("instantiate guest: %w", err)
	}
	m.module = mod

	logger.Debug("guest instantiated", zap.Int("entries", len(m.entries)))
	return m, nil
}

func isEntrySignature(def api.FunctionDefinition) bool {
	params, results := def.ParamTypes(), def.ResultTypes()
	if len(params) != 3 || len(results) != 1 || results[0] != api.ValueTypeI32 {
		return false
	}
	for _, p := range params {
		if p != api.ValueTypeI32 {
			return false
		}
	}
	return true
}

// Call runs the guest body for entry.
func (m *Wasm) Call(ctx context.Context, entry heap.Entry, self heap.Handle, env heap.Captures, arg int32) int32 {
	name, ok := m.entries[entry]
	if !ok {
		m.heap.Fail(errors.BadHeader("wasm.call", errors.SubMissingEntry,
			"guest exports no "+wasm.EntryName(entry.Offset())))
	}

	selfWord := m.words.Word(self)
	var envWord uint32
	if env.Len() > 0 {
		envWord = selfWord
	}

	m.calls++
	// A fresh function per call keeps nested calls from sharing call state.
	fn := m.module.ExportedFunction(name)
	results, err := fn.Call(ctx, api.EncodeU32(selfWord), api.EncodeU32(envWord), api.EncodeI32(arg))
	if err != nil {
		if fe, ok := errors.AsFatal(err); ok {
			panic(fe)
		}
		m.heap.Fail(errors.Trap("wasm.call "+name, err))
	}
	return api.DecodeI32(results[0])
}

// Entries returns the word offsets of every closure body the guest exports.
func (m *Wasm) Entries() []int {
	offsets := make([]int, 0, len(m.entries))
	for e := range m.entries {
		offsets = append(offsets, e.Offset())
	}
	sort.Ints(offsets)
	return offsets
}

// Words returns the handle table shared with the guest.
func (m *Wasm) Words() *Words {
	return m.words
}

// Calls returns the number of guest invocations so far.
func (m *Wasm) Calls() uint64 {
	return m.calls
}

// Close releases the wazero runtime.
func (m *Wasm) Close(ctx context.Context) error {
	m.unsubscribe()
	return m.runtime.Close(ctx)
}

func (m *Wasm) subscribe() {
	m.heap.Subscribe(m.words)
	if m.store != nil {
		m.store.Subscribe(m.words)
	}
}

func (m *Wasm) unsubscribe() {
	m.heap.Unsubscribe(m.words)
	if m.store != nil {
		m.store.Unsubscribe(m.words)
	}
}
