package heap

import (
	"io"
)

// Kind identifies an object variant.
type Kind uint8

const (
	KindRecord Kind = iota + 1
	KindAction
	KindCollection
	KindBuffer
	KindString
	KindLocal
	KindRefLocal
)

func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindAction:
		return "action"
	case KindCollection:
		return "collection"
	case KindBuffer:
		return "buffer"
	case KindString:
		return "string"
	case KindLocal:
		return "local"
	case KindRefLocal:
		return "reflocal"
	default:
		return "unknown"
	}
}

// Object is a reference-counted heap value. The set of implementations is
// closed to this package.
type Object interface {
	Kind() Kind
	// RefCount returns the current number of references.
	RefCount() int
	// Print writes a one-line diagnostic description.
	Print(w io.Writer)
	// Equals is identity for every variant except String, which compares content.
	Equals(other Object) bool

	base() *refObject
	destroy()
}

// Contents is implemented by values with byte content. String-semantics
// collections compare elements through it.
type Contents interface {
	Contents() ([]byte, bool)
}

// refObject is the header shared by all variants.
type refObject struct {
	heap   *Heap
	id     uint32
	refcnt uint16
}

func (o *refObject) base() *refObject { return o }

func (o *refObject) RefCount() int { return int(o.refcnt) }

// ID returns the allocation sequence number, unique per heap.
func (o *refObject) ID() uint32 { return o.id }

func contentOf(h Handle) ([]byte, bool) {
	var c Contents
	switch {
	case h.obj != nil:
		c, _ = h.obj.(Contents)
	case h.ext != nil:
		c, _ = h.ext.(Contents)
	}
	if c == nil {
		return nil, false
	}
	return c.Contents()
}
