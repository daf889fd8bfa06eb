package machine

import (
	"context"
	"testing"

	"github.com/wippyai/pxt-runtime/errors"
	"github.com/wippyai/pxt-runtime/heap"
	"github.com/wippyai/pxt-runtime/resource"
)

// testCode has entry markers at word offsets 0, 2 and 4.
var testCode = []uint16{0xFFFF, 0, 0xFFFF, 0, 0xFFFF, 0}

func expectFatal(t *testing.T, code errors.Code, subcode int, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		err, ok := errors.AsFatal(r)
		if !ok {
			t.Fatalf("expected fatal %s [%d], got %v", code, subcode, r)
		}
		if err.Code != code || err.Subcode != subcode {
			t.Fatalf("expected fatal %s [%d], got %v", code, subcode, err)
		}
	}()
	fn()
}

func TestFuncs_Call(t *testing.T) {
	h := heap.New(heap.Options{Code: testCode})
	funcs := NewFuncs(h.Sink()).
		Define(0, func(_ context.Context, _ heap.Handle, _ heap.Captures, arg int32) int32 {
			return arg + 1
		}).
		Define(2, func(_ context.Context, self heap.Handle, env heap.Captures, arg int32) int32 {
			if self.IsNull() {
				t.Error("closure invoked without self")
			}
			return int32(env.Word(0)) * arg
		})
	h.SetMachine(funcs)
	ctx := context.Background()

	if got := h.RunAction(ctx, h.MkAction(0, 0, 0), 41); got != 42 {
		t.Fatalf("zero-capture result = %d, want 42", got)
	}

	closure := h.NewAction(0, 1, 2).Word(0, 3).Build()
	if got := h.RunAction(ctx, closure, 5); got != 15 {
		t.Fatalf("closure result = %d, want 15", got)
	}
}

func TestFuncs_MissingEntry(t *testing.T) {
	h := heap.New(heap.Options{Code: testCode})
	h.SetMachine(NewFuncs(h.Sink()))

	expectFatal(t, errors.InvalidBinaryHeader, errors.SubMissingEntry, func() {
		h.RunAction(context.Background(), h.MkAction(0, 0, 4), 0)
	})
}

func TestWords_Assign(t *testing.T) {
	h := heap.New(heap.Options{Code: testCode})
	w := NewWords(h.Sink())

	obj := heap.Ref(h.MkRecord(0, 1))
	ext := heap.External(heap.EntryAt(2))

	if w.Word(heap.Null) != 0 {
		t.Fatal("null must map to word 0")
	}
	if got := w.Word(obj); got != 2 {
		t.Fatalf("object word = %#x, want 0x2", got)
	}
	if got := w.Word(ext); got != 5 {
		t.Fatalf("external word = %#x, want 0x5", got)
	}
	if w.Word(obj) != 2 || w.Len() != 2 {
		t.Fatal("same handle must keep its word")
	}

	if got, ok := w.Handle(2); !ok || got != obj {
		t.Fatalf("Handle(2) = %v, %v", got, ok)
	}
	if got, ok := w.Handle(5); !ok || got != ext {
		t.Fatalf("Handle(5) = %v, %v", got, ok)
	}
	if got, ok := w.Handle(0); !ok || !got.IsNull() {
		t.Fatal("word 0 must resolve to null")
	}
}

func TestWords_Invalid(t *testing.T) {
	h := heap.New(heap.Options{Code: testCode})
	w := NewWords(h.Sink())
	w.Word(heap.Ref(h.MkRecord(0, 1)))

	for _, word := range []uint32{1, 3, 0x40, 0x41} {
		if _, ok := w.Handle(word); ok {
			t.Fatalf("word %#x should not resolve", word)
		}
	}
}

func TestWords_ForgetReusesSlot(t *testing.T) {
	h := heap.New(heap.Options{Code: testCode})
	w := NewWords(h.Sink())
	a := heap.Ref(h.MkRecord(0, 1))
	b := heap.Ref(h.MkRecord(0, 1))

	wa := w.Word(a)
	w.Forget(a)
	if _, ok := w.Handle(wa); ok {
		t.Fatal("forgotten word still resolves")
	}

	wb := w.Word(b)
	if wb>>1&maxWordSlot != wa>>1&maxWordSlot {
		t.Fatal("freed slot not reused")
	}
	if wb == wa {
		t.Fatal("reused slot must get a new word")
	}
	if _, ok := w.Handle(wa); ok {
		t.Fatal("old word resolves to the slot's new handle")
	}
	if got, ok := w.Handle(wb); !ok || got != b {
		t.Fatalf("Handle(wb) = %v, %v", got, ok)
	}

	w.Forget(a)
	if w.Len() != 1 {
		t.Fatalf("Len = %d, want 1", w.Len())
	}
}

func TestWords_ForgetsDroppedResources(t *testing.T) {
	h := heap.New(heap.Options{Code: testCode})
	store := resource.NewStore(resource.Options{})
	w := NewWords(h.Sink())
	store.Subscribe(w)

	ref := store.New(resource.TypeText, "text")
	word := w.Word(heap.External(ref))
	if word&1 != 1 {
		t.Fatalf("external word %#x must carry tag 1", word)
	}

	ref.Decr()
	if _, ok := w.Handle(word); ok {
		t.Fatal("dropped resource still has a word")
	}
	if w.Len() != 0 {
		t.Fatalf("Len = %d, want 0", w.Len())
	}
}

func TestWords_ForgetsDestroyedObjects(t *testing.T) {
	h := heap.New(heap.Options{Code: testCode})
	w := NewWords(h.Sink())
	h.Subscribe(w)

	r := heap.Ref(h.MkRecord(0, 1))
	word := w.Word(r)
	w.Word(heap.External(heap.EntryAt(0)))

	heap.Decr(r)
	if _, ok := w.Handle(word); ok {
		t.Fatal("destroyed object still has a word")
	}
	if w.Len() != 1 {
		t.Fatalf("Len = %d, want 1", w.Len())
	}
}
