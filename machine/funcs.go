package machine

import (
	"context"

	"github.com/wippyai/pxt-runtime/errors"
	"github.com/wippyai/pxt-runtime/heap"
)

// Func is a closure body implemented in Go.
type Func func(ctx context.Context, self heap.Handle, env heap.Captures, arg int32) int32

// Funcs is a heap.Machine backed by Go functions keyed by entry.
type Funcs struct {
	sink  errors.Sink
	funcs map[heap.Entry]Func
}

// NewFuncs creates an empty table. Calls to undefined entries are reported
// through sink.
func NewFuncs(sink errors.Sink) *Funcs {
	return &Funcs{sink: sink, funcs: make(map[heap.Entry]Func)}
}

// Define installs fn for the entry marker at word offset startptr.
func (f *Funcs) Define(startptr int, fn Func) *Funcs {
	f.funcs[heap.EntryAt(startptr)] = fn
	return f
}

func (f *Funcs) Call(ctx context.Context, entry heap.Entry, self heap.Handle, env heap.Captures, arg int32) int32 {
	fn, ok := f.funcs[entry]
	if !ok {
		errors.Fatal(f.sink, errors.BadHeader("funcs.call", errors.SubMissingEntry,
			"no function defined for "+entry.String()))
	}
	return fn(ctx, self, env, arg)
}
