package heap

import (
	"context"
	"testing"

	"github.com/wippyai/pxt-runtime/errors"
)

func TestEntry_Tagging(t *testing.T) {
	e := EntryAt(4)
	if uint32(e) != (4*2+4)|1 {
		t.Fatalf("EntryAt(4) = %#x", uint32(e))
	}
	if e&1 != 1 {
		t.Fatal("entry must carry the execution-mode bit")
	}
	if e.Offset() != 4 {
		t.Fatalf("Offset = %d, want 4", e.Offset())
	}
}

func TestMkAction_ZeroCaptureNotAllocated(t *testing.T) {
	h, _ := newTestHeap()
	a := h.MkAction(0, 0, 4)

	if h.Stats().Allocated != 0 {
		t.Fatal("zero-capture action must not allocate")
	}
	if a.Tag() != TagExternal {
		t.Fatal("zero-capture action is a tagged entry")
	}
	e, ok := a.Counted().(Entry)
	if !ok || e != EntryAt(4) {
		t.Fatalf("got %v", a)
	}

	// Accounting on the bare entry is a no-op.
	Incr(a)
	Decr(a)
	Decr(a)
}

func TestMkAction_AllocatesCaptures(t *testing.T) {
	h, _ := newTestHeap()
	for _, tc := range []struct{ reflen, total int }{{0, 1}, {1, 1}, {2, 5}, {0, 255}, {255, 255}} {
		ref := h.MkAction(tc.reflen, tc.total, 0)
		a, ok := As[*Action](ref)
		if !ok {
			t.Fatalf("MkAction(%d, %d) did not allocate", tc.reflen, tc.total)
		}
		if a.Len() != tc.total || a.RefLen() != tc.reflen {
			t.Fatalf("len=%d reflen=%d", a.Len(), a.RefLen())
		}
		env := a.Captures()
		for i := 0; i < tc.reflen; i++ {
			if !env.Ref(i).IsNull() {
				t.Fatalf("capture %d not null", i)
			}
		}
		for i := tc.reflen; i < tc.total; i++ {
			if env.Word(i) != 0 {
				t.Fatalf("capture %d not zero", i)
			}
		}
		if a.Entry() != EntryAt(0) {
			t.Fatalf("entry = %v", a.Entry())
		}
		Decr(ref)
	}
}

func TestMkAction_HeaderValidation(t *testing.T) {
	tests := []struct {
		name     string
		startptr int
		subcode  int
	}{
		{"no marker", 2, errors.SubMarkerFirst},
		{"negative offset", -1, errors.SubMarkerFirst},
		{"past end", 100, errors.SubMarkerFirst},
		{"bad second word", 7, errors.SubMarkerSecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHeap()
			expectFatal(t, errors.InvalidBinaryHeader, tt.subcode, func() {
				h.MkAction(0, 1, tt.startptr)
			})
		})
	}
}

func TestMkAction_SizeViolation(t *testing.T) {
	h, _ := newTestHeap()
	expectFatal(t, errors.SizeViolation, errors.SubSizeRefLen, func() {
		h.MkAction(3, 2, 0)
	})
	expectFatal(t, errors.SizeViolation, errors.SubSizeTotalLen, func() {
		h.MkAction(0, 300, 0)
	})
}

func TestStoreCore_SingleAssignment(t *testing.T) {
	h, _ := newTestHeap()
	a, _ := As[*Action](h.MkAction(1, 2, 0))
	s := h.MkString("cap")

	a.StoreCore(0, Ref(s))
	a.StoreCoreWord(1, 7)

	expectFatal(t, errors.OutOfBounds, errors.SubCaptureAssigned, func() {
		a.StoreCore(0, Ref(s))
	})
	expectFatal(t, errors.OutOfBounds, errors.SubCaptureAssigned, func() {
		a.StoreCoreWord(1, 7)
	})
}

func TestStoreCore_ZeroSlotStaysWritable(t *testing.T) {
	h, _ := newTestHeap()
	a, _ := As[*Action](h.MkAction(1, 2, 0))
	buf := Ref(h.MkBuffer(2))

	a.StoreCore(0, Null)
	a.StoreCoreWord(1, 0)

	a.StoreCore(0, buf)
	a.StoreCoreWord(1, 7)
	if a.Captures().Ref(0) != buf || a.Captures().Word(1) != 7 {
		t.Fatal("zero captures should accept one write")
	}

	expectFatal(t, errors.OutOfBounds, errors.SubCaptureAssigned, func() {
		a.StoreCore(0, Null)
	})
	expectFatal(t, errors.OutOfBounds, errors.SubCaptureAssigned, func() {
		a.StoreCoreWord(1, 3)
	})
}

func TestStoreCore_Bounds(t *testing.T) {
	h, _ := newTestHeap()
	a, _ := As[*Action](h.MkAction(1, 2, 0))

	expectFatal(t, errors.OutOfBounds, errors.SubCaptureBounds, func() {
		a.StoreCore(2, Null)
	})
	expectFatal(t, errors.OutOfBounds, errors.SubCaptureBounds, func() {
		a.StoreCoreWord(-1, 1)
	})
	expectFatal(t, errors.OutOfBounds, errors.SubCaptureKind, func() {
		a.StoreCore(1, Null)
	})
	expectFatal(t, errors.OutOfBounds, errors.SubCaptureKind, func() {
		a.StoreCoreWord(0, 1)
	})
}

func TestRunAction_Closure(t *testing.T) {
	h, m := newTestHeap()
	ref := h.MkAction(0, 1, 4)
	a, _ := As[*Action](ref)
	a.StoreCoreWord(0, 40)

	m.fn = func(_ context.Context, entry Entry, self Handle, env Captures, arg int32) int32 {
		if self != ref {
			t.Errorf("self = %v, want %v", self, ref)
		}
		return int32(env.Word(0)) + arg
	}

	if got := h.RunAction(context.Background(), ref, 2); got != 42 {
		t.Fatalf("RunAction = %d, want 42", got)
	}
	if len(m.calls) != 1 || m.calls[0].entry != EntryAt(4) {
		t.Fatalf("calls = %+v", m.calls)
	}
	if a.RefCount() != 1 {
		t.Fatalf("RefCount = %d, want 1", a.RefCount())
	}
}

func TestRunAction_KeepsItselfAlive(t *testing.T) {
	h, m := newTestHeap()
	ref := h.MkAction(0, 1, 0)
	a, _ := As[*Action](ref)

	m.fn = func(_ context.Context, _ Entry, self Handle, _ Captures, _ int32) int32 {
		if a.RefCount() != 2 {
			t.Errorf("RefCount during call = %d, want 2", a.RefCount())
		}
		// Drop the caller's reference from inside the call.
		Decr(self)
		if h.Stats().Destroyed != 0 {
			t.Error("action destroyed while running")
		}
		return 0
	}

	h.RunAction(context.Background(), ref, 0)
	if h.Stats().Destroyed != 1 {
		t.Fatalf("Destroyed = %d, want 1 after the call returns", h.Stats().Destroyed)
	}
}

func TestRunAction_ZeroCapture(t *testing.T) {
	h, m := newTestHeap()
	ref := h.MkAction(0, 0, 4)

	if got := h.RunAction(context.Background(), ref, 9); got != 9 {
		t.Fatalf("RunAction = %d, want 9", got)
	}
	if len(m.calls) != 1 || !m.calls[0].self.IsNull() || m.calls[0].entry != EntryAt(4) {
		t.Fatalf("calls = %+v", m.calls)
	}
}

func TestRunAction_NullAndInvalid(t *testing.T) {
	h, m := newTestHeap()
	if got := h.RunAction(context.Background(), Null, 1); got != 0 || len(m.calls) != 0 {
		t.Fatal("null action should be skipped")
	}

	expectFatal(t, errors.InvalidBinaryHeader, errors.SubMarkerSecond, func() {
		h.RunAction(context.Background(), External(EntryAt(2)), 0)
	})
	expectFatal(t, errors.InvalidBinaryHeader, errors.SubMarkerSecond, func() {
		h.RunAction(context.Background(), Ref(h.MkRecord(0, 0)), 0)
	})
}

func TestRunAction_NoMachine(t *testing.T) {
	h := New(Options{Code: testCode})
	expectFatal(t, errors.InvalidBinaryHeader, errors.SubMissingEntry, func() {
		h.RunAction(context.Background(), h.MkAction(0, 0, 0), 0)
	})
}

func TestActionBuilder(t *testing.T) {
	h, m := newTestHeap()
	s := h.MkString("env")

	ref := h.NewAction(1, 3, 0).
		Ref(0, Incr(Ref(s))).
		Word(2, 5).
		Build()

	m.fn = func(_ context.Context, _ Entry, _ Handle, env Captures, _ int32) int32 {
		if env.Ref(0) != Ref(s) {
			t.Errorf("capture 0 = %v", env.Ref(0))
		}
		return int32(env.Word(1) + env.Word(2))
	}
	if got := h.RunAction(context.Background(), ref, 0); got != 5 {
		t.Fatalf("got %d, want 5", got)
	}

	Decr(ref)
	if s.RefCount() != 1 {
		t.Fatalf("captured reference not released, RefCount = %d", s.RefCount())
	}

	expectFatal(t, errors.OutOfBounds, errors.SubCaptureAssigned, func() {
		h.NewAction(0, 1, 0).Word(0, 1).Word(0, 2)
	})
	expectFatal(t, errors.OutOfBounds, errors.SubCaptureKind, func() {
		h.NewAction(1, 1, 0).Word(0, 1)
	})
}

func TestActionBuilder_ZeroCapture(t *testing.T) {
	h, _ := newTestHeap()
	ref := h.NewAction(0, 0, 4).Build()
	if ref.Tag() != TagExternal || h.Stats().Allocated != 0 {
		t.Fatalf("got %v", ref)
	}
}
