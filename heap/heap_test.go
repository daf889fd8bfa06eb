package heap

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/wippyai/pxt-runtime/errors"
)

// testCode has entry markers at word offsets 0 and 4.
var testCode = []uint16{0xFFFF, 0x0000, 0x1111, 0x2222, 0xFFFF, 0x0000, 0x3333, 0xFFFF, 0x1234}

type machineCall struct {
	self  Handle
	entry Entry
	arg   int32
}

type fakeMachine struct {
	fn    func(ctx context.Context, entry Entry, self Handle, env Captures, arg int32) int32
	calls []machineCall
}

func (m *fakeMachine) Call(ctx context.Context, entry Entry, self Handle, env Captures, arg int32) int32 {
	m.calls = append(m.calls, machineCall{entry: entry, self: self, arg: arg})
	if m.fn != nil {
		return m.fn(ctx, entry, self, env, arg)
	}
	return arg
}

type counter struct {
	n int
}

func (c *counter) Incr() { c.n++ }
func (c *counter) Decr() { c.n-- }

type testObserver struct {
	events []Event
}

func (o *testObserver) OnObjectEvent(e Event) {
	o.events = append(o.events, e)
}

func newTestHeap() (*Heap, *fakeMachine) {
	m := &fakeMachine{}
	return New(Options{Code: testCode, Machine: m}), m
}

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

func TestIncrDecr_Null(t *testing.T) {
	if got := Incr(Null); !got.IsNull() {
		t.Fatalf("Incr(Null) = %v", got)
	}
	Decr(Null)
}

func TestIncrDecr_Object(t *testing.T) {
	h, _ := newTestHeap()
	rec := h.MkRecord(0, 1)
	ref := Ref(rec)

	if got := Incr(ref); got != ref {
		t.Fatal("Incr should return the same handle")
	}
	if rec.RefCount() != 2 {
		t.Fatalf("RefCount = %d, want 2", rec.RefCount())
	}

	Decr(ref)
	Decr(ref)
	if rec.RefCount() != 0 {
		t.Fatalf("RefCount = %d, want 0", rec.RefCount())
	}
	if h.Stats().Live != 0 || h.Stats().Destroyed != 1 {
		t.Fatalf("Stats = %+v", h.Stats())
	}
}

func TestIncrDecr_External(t *testing.T) {
	c := &counter{n: 1}
	ref := External(c)

	if ref.Tag() != TagExternal {
		t.Fatal("expected TagExternal")
	}
	Incr(ref)
	if c.n != 2 {
		t.Fatalf("n = %d, want 2", c.n)
	}
	Decr(ref)
	Decr(ref)
	if c.n != 0 {
		t.Fatalf("n = %d, want 0", c.n)
	}
}

func TestIncr_DeletedIsFatal(t *testing.T) {
	h, _ := newTestHeap()
	rec := h.MkRecord(0, 0)
	Decr(Ref(rec))

	expectFatal(t, errors.ReferenceAlreadyDeleted, errors.SubIncrDeleted, func() {
		Incr(Ref(rec))
	})
}

func TestIncr_CountAtMaximumIsFatal(t *testing.T) {
	h, _ := newTestHeap()
	buf := h.MkBuffer(1)
	buf.refcnt = 0xFFFE
	Incr(Ref(buf))

	expectFatal(t, errors.SizeViolation, errors.SubRefCountMax, func() {
		Incr(Ref(buf))
	})
	if buf.RefCount() != 0xFFFF {
		t.Fatalf("RefCount = %d, want 65535", buf.RefCount())
	}
}

func TestDecr_DeletedIsFatal(t *testing.T) {
	h, _ := newTestHeap()
	buf := h.MkBuffer(2)
	Decr(Ref(buf))

	expectFatal(t, errors.ReferenceAlreadyDeleted, errors.SubDecrDeleted, func() {
		Decr(Ref(buf))
	})
}

func TestHandle_Tags(t *testing.T) {
	h, _ := newTestHeap()
	rec := h.MkRecord(0, 0)

	if !Ref(nil).IsNull() || !External(nil).IsNull() {
		t.Fatal("nil wrappers should be Null")
	}
	if Ref(rec).Tag() != TagObject {
		t.Fatal("heap objects carry TagObject")
	}
	if Ref(rec).Object() != rec {
		t.Fatal("Object() should return the record")
	}
	if _, ok := As[*Record](Ref(rec)); !ok {
		t.Fatal("As[*Record] failed")
	}
	if _, ok := As[*Buffer](Ref(rec)); ok {
		t.Fatal("As[*Buffer] should fail for a record")
	}
}

func TestHeap_Observer(t *testing.T) {
	h, _ := newTestHeap()
	obs := &testObserver{}
	h.Subscribe(obs)

	rec := h.MkRecord(0, 0)
	Decr(Ref(rec))

	if len(obs.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(obs.events))
	}
	if obs.events[0].Type != EventAllocated || obs.events[1].Type != EventDestroyed {
		t.Fatalf("unexpected events %+v", obs.events)
	}
	if obs.events[1].Object != rec {
		t.Fatal("wrong object in event")
	}

	h.Unsubscribe(obs)
	h.MkRecord(0, 0)
	if len(obs.events) != 2 {
		t.Fatal("should not receive events after Unsubscribe")
	}
}

func TestHeap_DestroyCascades(t *testing.T) {
	h, _ := newTestHeap()
	outer := h.MkRecord(1, 1)
	inner := h.MkCollection(OwnsElements)
	leaf := h.MkString("leaf")

	inner.Push(Ref(leaf))
	Decr(Ref(leaf)) // the collection holds the only reference now
	outer.StoreRef(0, Ref(inner))

	if h.Stats().Live != 3 {
		t.Fatalf("Live = %d, want 3", h.Stats().Live)
	}
	Decr(Ref(outer))
	if h.Stats().Live != 0 {
		t.Fatalf("Live = %d, want 0", h.Stats().Live)
	}
}

func TestHeap_Dump(t *testing.T) {
	h := New(Options{Code: testCode, TrackObjects: true})
	h.MkRecord(1, 2)
	s := h.MkString("hi")
	h.MkCollection(OwnsElements | StringSemantics)
	Decr(Ref(s))

	var out bytes.Buffer
	h.Dump(&out)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 live objects, got %q", out.String())
	}
	if !strings.HasPrefix(lines[0], "record#1") || !strings.HasPrefix(lines[1], "collection#3") {
		t.Fatalf("unexpected dump %q", out.String())
	}
}

func TestString_Equals(t *testing.T) {
	h, _ := newTestHeap()
	a := h.MkString("abc")
	b := h.MkString("abc")
	c := h.MkString("abd")

	if !a.Equals(b) {
		t.Error("strings with equal content should be equal")
	}
	if a.Equals(c) {
		t.Error("strings with different content should differ")
	}
	buf := h.BufferOf([]byte("abc"))
	if buf.Equals(h.BufferOf([]byte("abc"))) {
		t.Error("buffers compare by identity")
	}
	if !buf.Equals(buf) {
		t.Error("a buffer equals itself")
	}
}

func TestBuffer_Accessors(t *testing.T) {
	h, _ := newTestHeap()
	b := h.MkBuffer(3)
	b.Set(1, 0xAB)
	b.Set(5, 0xFF)

	if b.At(1) != 0xAB || b.At(-1) != 0 || b.At(3) != 0 {
		t.Fatalf("unexpected contents %v", b.Bytes())
	}
	if b.Len() != 3 {
		t.Fatalf("Len = %d", b.Len())
	}
}

func TestLocals(t *testing.T) {
	h, _ := newTestHeap()
	l := h.MkLocal()
	l.Set(7)
	if l.Get() != 7 {
		t.Fatalf("Get = %d", l.Get())
	}

	rl := h.MkRefLocal()
	s := h.MkString("x")
	rl.Store(Incr(Ref(s)))
	if s.RefCount() != 2 {
		t.Fatalf("RefCount = %d, want 2", s.RefCount())
	}
	got := rl.Load()
	if got != Ref(s) || s.RefCount() != 3 {
		t.Fatalf("Load = %v, RefCount = %d", got, s.RefCount())
	}
	Decr(got)

	Decr(Ref(rl))
	if s.RefCount() != 1 {
		t.Fatalf("RefCount after destroy = %d, want 1", s.RefCount())
	}
}
