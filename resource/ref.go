package resource

import "fmt"

// Ref is a counted reference to a value in a Store. It satisfies
// heap.Counted, so it can travel anywhere a heap handle can.
type Ref struct {
	store  *Store
	handle Handle
	gen    uint32
}

// Incr adds a reference. Incr on a dropped value is fatal, also after its
// slot has been reused.
func (r *Ref) Incr() { r.store.incr(r) }

// Decr drops a reference. The value is destroyed when the count reaches
// zero. Decr on a dropped value is fatal.
func (r *Ref) Decr() { r.store.decr(r) }

func (r *Ref) Handle() Handle { return r.handle }

// RefCount returns the current count, or 0 once the value is dropped.
func (r *Ref) RefCount() int { return r.store.refCount(r) }

// Value returns the stored value, or nil once it is dropped.
func (r *Ref) Value() any { return r.store.value(r) }

// Contents exposes the byte content of string-like values.
func (r *Ref) Contents() ([]byte, bool) {
	return contentOf(r.Value())
}

func (r *Ref) String() string {
	return fmt.Sprintf("resource#%d.%d", r.handle, r.gen)
}

// Static wraps a read-only value whose lifetime is the whole program, such
// as a literal in the code image. Its accounting is a no-op.
type Static struct {
	Value any
}

// NewStatic returns a static reference to v.
func NewStatic(v any) *Static {
	return &Static{Value: v}
}

func (*Static) Incr() {}

func (*Static) Decr() {}

func (s *Static) Contents() ([]byte, bool) {
	return contentOf(s.Value)
}

func contentOf(v any) ([]byte, bool) {
	switch v := v.(type) {
	case Byter:
		return v.Bytes(), true
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	}
	return nil, false
}
