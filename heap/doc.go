// Package heap implements the reference-counted object model shared between
// the host and compiled guest code.
//
// # Handles
//
// A Handle is either null, a polymorphic heap Object, or an external Counted
// value whose accounting belongs to the host:
//
//	h := heap.Ref(rec)          // tag 0: heap object
//	e := heap.External(res)     // tag 1: host counted handle
//	heap.Incr(h)                // bumps the count, returns h
//	heap.Decr(h)                // drops the count, destroys at zero
//
// Destruction is immediate and synchronous. There is no cycle collector:
// owned references must stay tree-shaped.
//
// # Objects
//
// The variant set is closed: Record, Action, Collection, Buffer, String,
// Local and RefLocal. All of them start with a count of one and are created
// through a Heap, the process-wide context that carries the code stream, the
// machine executing compiled code, the fatal error sink and the logger.
//
//	h := heap.New(heap.Options{Code: code, Machine: m})
//	rec := h.MkRecord(1, 3)      // one owned field, two plain words
//	rec.StoreRef(0, heap.Incr(x))
//	rec.Store(1, 42)
//
// # Calling convention
//
// A reference loaded onto the caller's stack counts: LoadRef and GetAt return
// incremented handles, and StoreRef/StoreCore take over the reference they are
// given. Values popped after a call are released with Decr.
//
// # Actions
//
// Closures are created with MkAction from a word offset into the code stream.
// The offset must point at the 0xFFFF, 0x0000 entry marker. Closures without
// captures are not allocated at all: MkAction returns the tagged Entry as an
// external handle with no-op accounting, and RunAction accepts both forms.
//
// # Thread Safety
//
// A Heap and its objects are used from one logical thread. Counts are not
// atomic and nothing is locked.
package heap
