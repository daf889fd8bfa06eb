package machine

import (
	"github.com/wippyai/pxt-runtime/errors"
	"github.com/wippyai/pxt-runtime/heap"
	"github.com/wippyai/pxt-runtime/resource"
)

// Word layout: bit 0 is the handle's heap.Tag, bits 1-20 the slot and the
// remaining bits the slot's generation. Word 0 is null.
const (
	wordSlotBits = 20
	maxWordSlot  = 1<<wordSlotBits - 1
	wordGenShift = wordSlotBits + 1
	wordGenMask  = 1<<(32-wordGenShift) - 1
)

// Words maps handles to the 32-bit words compiled code holds. The same
// handle always maps to the same word while it is live. A slot is recycled
// once its handle is forgotten, under the next generation, so words handed
// out for the old handle stop resolving.
type Words struct {
	sink  errors.Sink
	slots []wordSlot
	index map[heap.Handle]uint32
	free  []uint32
}

type wordSlot struct {
	handle heap.Handle
	gen    uint32
}

// NewWords creates an empty table. Running out of slots is reported to sink.
func NewWords(sink errors.Sink) *Words {
	return &Words{
		sink:  sink,
		slots: make([]wordSlot, 1, 64),
		index: make(map[heap.Handle]uint32),
	}
}

// Word returns the word for h, assigning a slot on first use.
func (w *Words) Word(h heap.Handle) uint32 {
	if h.IsNull() {
		return 0
	}
	slot, ok := w.index[h]
	if !ok {
		if n := len(w.free); n > 0 {
			slot = w.free[n-1]
			w.free = w.free[:n-1]
			w.slots[slot].handle = h
		} else {
			if len(w.slots) > maxWordSlot {
				errors.Fatal(w.sink, errors.New(errors.SizeViolation, errors.SubWordSlots).
					Site("words").
					Value(len(w.slots)).
					Detail("guest handle table is full").
					Build())
			}
			slot = uint32(len(w.slots))
			w.slots = append(w.slots, wordSlot{handle: h})
		}
		w.index[h] = slot
	}
	return w.slots[slot].gen<<wordGenShift | slot<<1 | uint32(h.Tag())
}

// Handle resolves word. It reports false for words that name no live slot,
// carry an old generation or the wrong tag.
func (w *Words) Handle(word uint32) (heap.Handle, bool) {
	if word == 0 {
		return heap.Null, true
	}
	slot := word >> 1 & maxWordSlot
	if slot == 0 || int(slot) >= len(w.slots) {
		return heap.Null, false
	}
	s := w.slots[slot]
	if s.handle.IsNull() || s.gen != word>>wordGenShift || uint32(s.handle.Tag()) != word&1 {
		return heap.Null, false
	}
	return s.handle, true
}

// Forget releases the slot held by h. The handle's reference count is not
// touched.
func (w *Words) Forget(h heap.Handle) {
	slot, ok := w.index[h]
	if !ok {
		return
	}
	delete(w.index, h)
	w.slots[slot] = wordSlot{gen: (w.slots[slot].gen + 1) & wordGenMask}
	w.free = append(w.free, slot)
}

// Len returns the number of occupied slots.
func (w *Words) Len() int {
	return len(w.index)
}

// OnObjectEvent drops destroyed objects from the table.
func (w *Words) OnObjectEvent(e heap.Event) {
	if e.Type == heap.EventDestroyed {
		w.Forget(heap.Ref(e.Object))
	}
}

// OnResourceEvent drops external handles whose value left the store.
func (w *Words) OnResourceEvent(e resource.Event) {
	if e.Type == resource.EventDropped && e.Ref != nil {
		w.Forget(heap.External(e.Ref))
	}
}
