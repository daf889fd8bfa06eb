package heap

import (
	"context"
	"fmt"
	"io"

	"github.com/wippyai/pxt-runtime/errors"
)

// Entry marker words that precede every closure entry in the code stream.
const (
	MarkerFirst  uint16 = 0xFFFF
	MarkerSecond uint16 = 0x0000
)

// entryHeaderBytes is the size of the marker skipped by a tagged entry.
const entryHeaderBytes = 4

// Entry is a tagged code pointer: the byte offset of the code following an
// entry marker, with the low execution-mode bit set. Closures without
// captures are represented by their Entry alone; its accounting is a no-op.
type Entry uint32

// EntryAt returns the tagged entry for the marker at word offset startptr.
func EntryAt(startptr int) Entry {
	return Entry((uint32(startptr)*2 + entryHeaderBytes) | 1)
}

// Offset returns the word offset of the entry marker.
func (e Entry) Offset() int {
	return int(((uint32(e) &^ 1) - entryHeaderBytes) / 2)
}

func (Entry) Incr() {}

func (Entry) Decr() {}

func (e Entry) String() string {
	return fmt.Sprintf("entry@%d", e.Offset())
}

// Captures views the captured fields of a closure. The zero value views no
// fields.
type Captures struct {
	a *Action
}

func (c Captures) Len() int {
	if c.a == nil {
		return 0
	}
	return c.a.Len()
}

func (c Captures) RefLen() int {
	if c.a == nil {
		return 0
	}
	return len(c.a.refs)
}

// Ref returns the owned capture at idx without adding a reference.
func (c Captures) Ref(idx int) Handle {
	if idx < 0 || idx >= c.RefLen() {
		c.fail(errors.IndexOutOfBounds("captures.ref", errors.SubCaptureBounds, idx, 0, c.RefLen()))
	}
	return c.a.refs[idx]
}

// Word returns the plain capture at idx.
func (c Captures) Word(idx int) Word {
	if idx < c.RefLen() || idx >= c.Len() {
		c.fail(errors.IndexOutOfBounds("captures.word", errors.SubCaptureBounds, idx, c.RefLen(), c.Len()))
	}
	return c.a.words[idx-len(c.a.refs)]
}

func (c Captures) fail(err *errors.Error) {
	if c.a == nil {
		errors.Fatal(nil, err)
	}
	c.a.heap.fail(err)
}

// Action is a closure: a code entry plus captured fields. Owned captures
// come first. A capture slot accepts a write only while it still holds zero.
type Action struct {
	refObject
	refs  []Handle
	words []Word
	entry Entry
}

// MkAction creates a closure for the entry marker at word offset startptr of
// the code stream. With total == 0 no object is allocated and the returned
// handle carries the bare Entry.
func (h *Heap) MkAction(reflen, total, startptr int) Handle {
	h.checkSize("mkAction", reflen, total)
	h.checkMarker("mkAction", startptr)

	entry := EntryAt(startptr)
	if total == 0 {
		return External(entry)
	}

	a := &Action{
		refs:  make([]Handle, reflen),
		words: make([]Word, total-reflen),
		entry: entry,
	}
	h.track(a)
	return Ref(a)
}

func (h *Heap) checkMarker(site string, startptr int) {
	if startptr < 0 || startptr >= len(h.code) || h.code[startptr] != MarkerFirst {
		h.fail(errors.New(errors.InvalidBinaryHeader, errors.SubMarkerFirst).
			Site(site).
			Value(startptr).
			Detail("missing entry marker at word %d", startptr).
			Build())
	}
	if startptr+1 >= len(h.code) || h.code[startptr+1] != MarkerSecond {
		h.fail(errors.New(errors.InvalidBinaryHeader, errors.SubMarkerSecond).
			Site(site).
			Value(startptr).
			Detail("bad entry marker tail at word %d", startptr+1).
			Build())
	}
}

func (a *Action) Kind() Kind { return KindAction }

// Entry returns the tagged code pointer the closure dispatches to.
func (a *Action) Entry() Entry { return a.entry }

func (a *Action) Len() int { return len(a.refs) + len(a.words) }

func (a *Action) RefLen() int { return len(a.refs) }

// StoreCore writes owned capture idx, taking over the caller's reference.
func (a *Action) StoreCore(idx int, v Handle) {
	a.checkCapture(idx)
	if idx >= len(a.refs) {
		a.heap.fail(errors.IndexOutOfBounds("action.storeCore", errors.SubCaptureKind, idx, 0, len(a.refs)))
	}
	if !a.refs[idx].IsNull() {
		a.heap.fail(errors.AlreadyAssigned("action.storeCore", idx))
	}
	a.refs[idx] = v
}

// StoreCoreWord writes plain capture idx.
func (a *Action) StoreCoreWord(idx int, v Word) {
	a.checkCapture(idx)
	if idx < len(a.refs) {
		a.heap.fail(errors.IndexOutOfBounds("action.storeCoreWord", errors.SubCaptureKind, idx, len(a.refs), a.Len()))
	}
	if a.words[idx-len(a.refs)] != 0 {
		a.heap.fail(errors.AlreadyAssigned("action.storeCoreWord", idx))
	}
	a.words[idx-len(a.refs)] = v
}

func (a *Action) checkCapture(idx int) {
	if idx < 0 || idx >= a.Len() {
		a.heap.fail(errors.IndexOutOfBounds("action.storeCore", errors.SubCaptureBounds, idx, 0, a.Len()))
	}
}

// Captures returns a view of the captured fields.
func (a *Action) Captures() Captures {
	return Captures{a: a}
}

// Run invokes the closure. It holds its own reference for the duration of
// the call, so it survives callers releasing it from inside.
func (a *Action) Run(ctx context.Context, arg int32) int32 {
	self := Incr(Ref(a))
	r := a.heap.call(ctx, a.entry, self, Captures{a: a}, arg)
	Decr(self)
	return r
}

func (a *Action) Print(w io.Writer) {
	fmt.Fprintf(w, "action#%d r=%d pc=%d len=%d (%d refs)\n", a.id, a.refcnt, a.entry.Offset(), a.Len(), len(a.refs))
}

func (a *Action) Equals(other Object) bool {
	return Object(a) == other
}

func (a *Action) destroy() {
	for i := range a.refs {
		Decr(a.refs[i])
		a.refs[i] = Null
	}
}

// RunAction invokes an action value in either representation and returns its
// result. Null actions are skipped and return 0.
func (h *Heap) RunAction(ctx context.Context, action Handle, arg int32) int32 {
	switch {
	case action.IsNull():
		return 0
	case action.obj != nil:
		a, ok := action.obj.(*Action)
		if !ok {
			h.fail(errors.BadHeader("runAction", errors.SubMarkerSecond,
				fmt.Sprintf("%s is not callable", action.obj.Kind())))
		}
		return a.Run(ctx, arg)
	default:
		e, ok := action.ext.(Entry)
		if !ok {
			h.fail(errors.BadHeader("runAction", errors.SubMarkerSecond, "external handle is not callable"))
		}
		if off := e.Offset(); off < 0 || off >= len(h.code) || h.code[off] != MarkerFirst {
			h.fail(errors.BadHeader("runAction", errors.SubMarkerSecond,
				fmt.Sprintf("no entry marker at word %d", off)))
		}
		return h.call(ctx, e, Null, Captures{}, arg)
	}
}

func (h *Heap) call(ctx context.Context, entry Entry, self Handle, env Captures, arg int32) int32 {
	if h.machine == nil {
		h.fail(errors.BadHeader("call", errors.SubMissingEntry, "no machine attached"))
	}
	return h.machine.Call(ctx, entry, self, env, arg)
}

// ActionBuilder assembles every capture before the closure exists, so the
// closure is never observable half-initialized.
type ActionBuilder struct {
	heap     *Heap
	refs     map[int]Handle
	words    map[int]Word
	reflen   int
	total    int
	startptr int
}

// NewAction validates the layout and entry marker and returns a builder.
func (h *Heap) NewAction(reflen, total, startptr int) *ActionBuilder {
	h.checkSize("newAction", reflen, total)
	h.checkMarker("newAction", startptr)
	return &ActionBuilder{
		heap:     h,
		refs:     make(map[int]Handle),
		words:    make(map[int]Word),
		reflen:   reflen,
		total:    total,
		startptr: startptr,
	}
}

// Ref sets owned capture idx, taking over the caller's reference.
func (b *ActionBuilder) Ref(idx int, v Handle) *ActionBuilder {
	if idx < 0 || idx >= b.reflen {
		b.heap.fail(errors.IndexOutOfBounds("newAction.ref", errors.SubCaptureKind, idx, 0, b.reflen))
	}
	if _, dup := b.refs[idx]; dup {
		b.heap.fail(errors.AlreadyAssigned("newAction.ref", idx))
	}
	b.refs[idx] = v
	return b
}

// Word sets plain capture idx.
func (b *ActionBuilder) Word(idx int, v Word) *ActionBuilder {
	if idx < b.reflen || idx >= b.total {
		b.heap.fail(errors.IndexOutOfBounds("newAction.word", errors.SubCaptureKind, idx, b.reflen, b.total))
	}
	if _, dup := b.words[idx]; dup {
		b.heap.fail(errors.AlreadyAssigned("newAction.word", idx))
	}
	b.words[idx] = v
	return b
}

// Build creates the closure and installs the captures.
func (b *ActionBuilder) Build() Handle {
	h := b.heap.MkAction(b.reflen, b.total, b.startptr)
	a, ok := As[*Action](h)
	if !ok {
		return h
	}
	for idx, v := range b.refs {
		a.refs[idx] = v
	}
	for idx, v := range b.words {
		a.words[idx-b.reflen] = v
	}
	return h
}
