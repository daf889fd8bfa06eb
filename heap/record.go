package heap

import (
	"fmt"
	"io"

	"github.com/wippyai/pxt-runtime/errors"
)

// Record is a fixed-layout object: RefLen owned handle fields followed by
// plain word fields, Len fields in total.
type Record struct {
	refObject
	refs  []Handle
	words []Word
}

// MkRecord allocates a zero-filled record. reflen and total must satisfy
// 0 <= reflen <= total <= 255; anything else is a fatal size violation.
func (h *Heap) MkRecord(reflen, total int) *Record {
	h.checkSize("mkRecord", reflen, total)

	r := &Record{
		refs:  make([]Handle, reflen),
		words: make([]Word, total-reflen),
	}
	h.track(r)
	return r
}

func (r *Record) Kind() Kind { return KindRecord }

// Len returns the total number of fields.
func (r *Record) Len() int { return len(r.refs) + len(r.words) }

// RefLen returns the number of owned fields.
func (r *Record) RefLen() int { return len(r.refs) }

// Load reads a plain field in [RefLen, Len).
func (r *Record) Load(idx int) Word {
	if idx < len(r.refs) || idx >= r.Len() {
		r.heap.fail(errors.IndexOutOfBounds("record.load", errors.SubRecordLoad, idx, len(r.refs), r.Len()))
	}
	return r.words[idx-len(r.refs)]
}

// LoadRef reads an owned field in [0, RefLen). The caller receives a new
// reference.
func (r *Record) LoadRef(idx int) Handle {
	if idx < 0 || idx >= len(r.refs) {
		r.heap.fail(errors.IndexOutOfBounds("record.loadRef", errors.SubRecordLoadRef, idx, 0, len(r.refs)))
	}
	return Incr(r.refs[idx])
}

// Store writes a plain field in [RefLen, Len).
func (r *Record) Store(idx int, v Word) {
	if idx < len(r.refs) || idx >= r.Len() {
		r.heap.fail(errors.IndexOutOfBounds("record.store", errors.SubRecordStore, idx, len(r.refs), r.Len()))
	}
	r.words[idx-len(r.refs)] = v
}

// StoreRef writes an owned field in [0, RefLen), taking over the caller's
// reference to v. The previous occupant is released first, also when it is v.
func (r *Record) StoreRef(idx int, v Handle) {
	if idx < 0 || idx >= len(r.refs) {
		r.heap.fail(errors.IndexOutOfBounds("record.storeRef", errors.SubRecordStoreRef, idx, 0, len(r.refs)))
	}
	Decr(r.refs[idx])
	r.refs[idx] = v
}

func (r *Record) Print(w io.Writer) {
	fmt.Fprintf(w, "record#%d r=%d len=%d (%d refs)\n", r.id, r.refcnt, r.Len(), len(r.refs))
}

func (r *Record) Equals(other Object) bool {
	return Object(r) == other
}

func (r *Record) destroy() {
	for i := range r.refs {
		Decr(r.refs[i])
		r.refs[i] = Null
	}
}
