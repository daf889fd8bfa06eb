package heap

import (
	"fmt"
	"math"

	"github.com/wippyai/pxt-runtime/errors"
)

// Word is a plain, non-owned 32-bit field value.
type Word uint32

// Tag distinguishes the two non-null handle representations.
type Tag uint8

const (
	TagObject   Tag = 0
	TagExternal Tag = 1
)

// Counted is an externally accounted value. The runtime forwards Incr and
// Decr to it and never inspects the count.
type Counted interface {
	Incr()
	Decr()
}

// Handle refers to a heap object, an external counted value, or nothing.
// The zero Handle is null. Handles compare by identity with ==.
type Handle struct {
	obj Object
	ext Counted
}

// Null is the absent handle.
var Null Handle

// Ref wraps a heap object. A nil object yields Null.
func Ref(o Object) Handle {
	if o == nil {
		return Null
	}
	return Handle{obj: o}
}

// External wraps a host counted value. A nil value yields Null.
func External(c Counted) Handle {
	if c == nil {
		return Null
	}
	return Handle{ext: c}
}

func (h Handle) IsNull() bool {
	return h.obj == nil && h.ext == nil
}

// Object returns the heap object, or nil for null and external handles.
func (h Handle) Object() Object {
	return h.obj
}

// Counted returns the external value, or nil for null and heap handles.
func (h Handle) Counted() Counted {
	return h.ext
}

// Tag reports the representation. Null handles report TagObject.
func (h Handle) Tag() Tag {
	if h.ext != nil {
		return TagExternal
	}
	return TagObject
}

func (h Handle) String() string {
	switch {
	case h.obj != nil:
		return fmt.Sprintf("%s#%d", h.obj.Kind(), h.obj.base().id)
	case h.ext != nil:
		return fmt.Sprintf("external(%v)", h.ext)
	default:
		return "null"
	}
}

// As returns the handle's object as T when it has that concrete type.
func As[T Object](h Handle) (T, bool) {
	t, ok := h.obj.(T)
	return t, ok
}

// Incr adds a reference to h and returns h unchanged, so it can be threaded
// through an expression. Incrementing a destroyed object is fatal.
func Incr(h Handle) Handle {
	switch {
	case h.obj != nil:
		b := h.obj.base()
		if b.refcnt == 0 {
			b.heap.fail(errors.Deleted("incr", errors.SubIncrDeleted))
		}
		if b.refcnt == math.MaxUint16 {
			b.heap.fail(errors.New(errors.SizeViolation, errors.SubRefCountMax).
				Site("incr").
				Value(h.obj.Kind()).
				Detail("reference count at maximum %d", math.MaxUint16).
				Build())
		}
		b.refcnt++
	case h.ext != nil:
		h.ext.Incr()
	}
	return h
}

// Decr drops a reference to h. The object is destroyed before Decr returns
// when its count reaches zero.
func Decr(h Handle) {
	switch {
	case h.obj != nil:
		b := h.obj.base()
		if b.refcnt == 0 {
			b.heap.fail(errors.Deleted("decr", errors.SubDecrDeleted))
		}
		b.refcnt--
		if b.refcnt == 0 {
			b.heap.release(h.obj)
		}
	case h.ext != nil:
		h.ext.Decr()
	}
}
