package heap

import (
	"fmt"
	"io"
)

// Local boxes a plain local variable written from inside a closure.
type Local struct {
	refObject
	v Word
}

func (h *Heap) MkLocal() *Local {
	l := &Local{}
	h.track(l)
	return l
}

func (l *Local) Kind() Kind { return KindLocal }

func (l *Local) Get() Word { return l.v }

func (l *Local) Set(v Word) { l.v = v }

func (l *Local) Print(w io.Writer) {
	fmt.Fprintf(w, "local#%d r=%d v=%d\n", l.id, l.refcnt, l.v)
}

func (l *Local) Equals(other Object) bool {
	return Object(l) == other
}

func (l *Local) destroy() {}

// RefLocal boxes a reference-typed local variable. It owns its value.
type RefLocal struct {
	refObject
	v Handle
}

func (h *Heap) MkRefLocal() *RefLocal {
	l := &RefLocal{}
	h.track(l)
	return l
}

func (l *RefLocal) Kind() Kind { return KindRefLocal }

// Load returns the value with a new reference.
func (l *RefLocal) Load() Handle { return Incr(l.v) }

// Store replaces the value, taking over the caller's reference.
func (l *RefLocal) Store(v Handle) {
	Decr(l.v)
	l.v = v
}

func (l *RefLocal) Print(w io.Writer) {
	fmt.Fprintf(w, "reflocal#%d r=%d v=%s\n", l.id, l.refcnt, l.v)
}

func (l *RefLocal) Equals(other Object) bool {
	return Object(l) == other
}

func (l *RefLocal) destroy() {
	Decr(l.v)
	l.v = Null
}
