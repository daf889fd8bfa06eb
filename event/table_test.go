package event

import (
	"context"
	"errors"
	"testing"

	"github.com/wippyai/pxt-runtime/heap"
)

// testCode has entry markers at word offsets 0, 2 and 4.
var testCode = []uint16{0xFFFF, 0, 0xFFFF, 0, 0xFFFF, 0}

type invocation struct {
	entry heap.Entry
	arg   int32
}

type recorder struct {
	calls []invocation
	fn    func(entry heap.Entry, arg int32)
}

func (r *recorder) Call(_ context.Context, entry heap.Entry, _ heap.Handle, _ heap.Captures, arg int32) int32 {
	r.calls = append(r.calls, invocation{entry, arg})
	if r.fn != nil {
		r.fn(entry, arg)
	}
	return 0
}

type fakeBus struct {
	listens []key
	err     error
}

func (b *fakeBus) Listen(source, value int32, _ Listener) error {
	if b.err != nil {
		return b.err
	}
	b.listens = append(b.listens, key{source, value})
	return nil
}

func newTestTable() (*Table, *heap.Heap, *recorder, *fakeBus) {
	rec := &recorder{}
	h := heap.New(heap.Options{Code: testCode, Machine: rec})
	bus := &fakeBus{}
	return NewTable(h, bus, nil), h, rec, bus
}

// closure allocates a one-capture action so reference counts are observable.
func closure(t *testing.T, h *heap.Heap, startptr int) (heap.Handle, *heap.Action) {
	t.Helper()
	ref := h.MkAction(0, 1, startptr)
	a, ok := heap.As[*heap.Action](ref)
	if !ok {
		t.Fatal("expected an allocated action")
	}
	return ref, a
}

func TestTable_RegisterRetains(t *testing.T) {
	table, h, _, bus := newTestTable()
	ref, a := closure(t, h, 0)

	if err := table.Register(5, 100, ref); err != nil {
		t.Fatal(err)
	}
	if a.RefCount() != 2 {
		t.Fatalf("RefCount = %d, want 2", a.RefCount())
	}
	if table.Handler(5, 100) != ref || table.Len() != 1 {
		t.Fatal("handler not installed")
	}
	if len(bus.listens) != 1 || bus.listens[0] != (key{5, 100}) {
		t.Fatalf("listens = %v", bus.listens)
	}
}

func TestTable_ReRegisterReleasesPrevious(t *testing.T) {
	table, h, rec, bus := newTestTable()
	a1ref, a1 := closure(t, h, 0)
	a2ref, a2 := closure(t, h, 2)

	table.Register(5, 100, a1ref)
	before := a1.RefCount()
	table.Register(5, 100, a2ref)

	if a1.RefCount() != before-1 {
		t.Fatalf("A1 RefCount = %d, want %d", a1.RefCount(), before-1)
	}
	if a2.RefCount() != 2 {
		t.Fatalf("A2 RefCount = %d, want 2", a2.RefCount())
	}
	if len(bus.listens) != 1 {
		t.Fatalf("subscribed %d times, want once", len(bus.listens))
	}

	table.Dispatch(context.Background(), Event{Source: 5, Value: 100})
	if len(rec.calls) != 1 || rec.calls[0].entry != a2.Entry() {
		t.Fatalf("calls = %+v", rec.calls)
	}
}

func TestTable_ReRegisterSameAction(t *testing.T) {
	table, h, _, _ := newTestTable()
	ref, a := closure(t, h, 0)
	table.Register(1, 1, ref)
	heap.Decr(ref)
	// The table now holds the only reference.

	table.Register(1, 1, ref)
	if a.RefCount() != 1 {
		t.Fatalf("RefCount = %d, want 1", a.RefCount())
	}
}

func TestTable_DispatchExactThenWildcard(t *testing.T) {
	table, h, rec, _ := newTestTable()
	exact, ea := closure(t, h, 0)
	wild, wa := closure(t, h, 2)
	other, _ := closure(t, h, 4)

	table.Register(5, Any, wild)
	table.Register(5, 100, exact)
	table.Register(6, 100, other)

	table.Dispatch(context.Background(), Event{Source: 5, Value: 100})

	want := []invocation{{ea.Entry(), 100}, {wa.Entry(), 100}}
	if len(rec.calls) != len(want) {
		t.Fatalf("calls = %+v, want %+v", rec.calls, want)
	}
	for i := range want {
		if rec.calls[i] != want[i] {
			t.Fatalf("call %d = %+v, want %+v", i, rec.calls[i], want[i])
		}
	}
}

func TestTable_DispatchWildcardOnly(t *testing.T) {
	table, h, rec, _ := newTestTable()
	wild, wa := closure(t, h, 2)
	table.Register(5, Any, wild)

	table.Dispatch(context.Background(), Event{Source: 5, Value: 7})
	if len(rec.calls) != 1 || rec.calls[0] != (invocation{wa.Entry(), 7}) {
		t.Fatalf("calls = %+v", rec.calls)
	}
}

func TestTable_DispatchWildcardValue(t *testing.T) {
	table, h, rec, _ := newTestTable()
	wild, wa := closure(t, h, 2)
	table.Register(5, Any, wild)

	table.Dispatch(context.Background(), Event{Source: 5, Value: Any})

	// The exact lookup and the wildcard lookup both find the same handler.
	want := invocation{wa.Entry(), Any}
	if len(rec.calls) != 2 || rec.calls[0] != want || rec.calls[1] != want {
		t.Fatalf("calls = %+v", rec.calls)
	}
}

func TestTable_DispatchNoHandler(t *testing.T) {
	table, _, rec, _ := newTestTable()
	e := Event{Source: 9, Value: 9}
	table.Dispatch(context.Background(), e)

	if len(rec.calls) != 0 {
		t.Fatal("nothing should run")
	}
	if table.Last() != e || table.Dispatched() != 1 {
		t.Fatalf("Last = %v", table.Last())
	}
}

func TestTable_LastEventOverwritten(t *testing.T) {
	table, _, _, _ := newTestTable()
	table.Dispatch(context.Background(), Event{Source: 1, Value: 1})
	table.Dispatch(context.Background(), Event{Source: 2, Value: 3})

	if got := table.Last(); got.Source != 2 || got.Value != 3 {
		t.Fatalf("Last = %v", got)
	}
}

func TestTable_HandlerReplacesItself(t *testing.T) {
	table, h, rec, _ := newTestTable()
	a1ref, a1 := closure(t, h, 0)
	a2ref, _ := closure(t, h, 2)
	table.Register(5, 100, a1ref)
	heap.Decr(a1ref)

	rec.fn = func(entry heap.Entry, _ int32) {
		if entry == a1.Entry() {
			table.Register(5, 100, a2ref)
		}
	}
	table.Dispatch(context.Background(), Event{Source: 5, Value: 100})

	if h.Stats().Destroyed != 1 {
		t.Fatalf("Destroyed = %d, want A1 destroyed after its run", h.Stats().Destroyed)
	}
	table.Dispatch(context.Background(), Event{Source: 5, Value: 100})
	if len(rec.calls) != 2 || rec.calls[1].entry != heap.EntryAt(2) {
		t.Fatalf("calls = %+v", rec.calls)
	}
}

func TestTable_RegisterNullClears(t *testing.T) {
	table, h, rec, bus := newTestTable()
	ref, a := closure(t, h, 0)
	table.Register(5, 100, ref)
	table.Register(5, 100, heap.Null)

	if table.Len() != 0 || a.RefCount() != 1 {
		t.Fatalf("Len = %d, RefCount = %d", table.Len(), a.RefCount())
	}
	table.Dispatch(context.Background(), Event{Source: 5, Value: 100})
	if len(rec.calls) != 0 {
		t.Fatal("cleared handler ran")
	}

	table.Register(5, 100, ref)
	if len(bus.listens) != 1 {
		t.Fatalf("subscribed %d times, want once", len(bus.listens))
	}
}

func TestTable_ZeroCaptureHandler(t *testing.T) {
	table, h, rec, _ := newTestTable()
	table.Register(3, Any, h.MkAction(0, 0, 4))

	table.Dispatch(context.Background(), Event{Source: 3, Value: 12})
	if len(rec.calls) != 1 || rec.calls[0] != (invocation{heap.EntryAt(4), 12}) {
		t.Fatalf("calls = %+v", rec.calls)
	}
}

func TestTable_ListenError(t *testing.T) {
	table, h, _, bus := newTestTable()
	bus.err = errors.New("bus down")
	ref, _ := closure(t, h, 0)

	if err := table.Register(1, 2, ref); !errors.Is(err, bus.err) {
		t.Fatalf("err = %v", err)
	}

	bus.err = nil
	if err := table.Register(1, 2, ref); err != nil {
		t.Fatal(err)
	}
	if len(bus.listens) != 1 {
		t.Fatal("failed subscription should be retried")
	}
}

func TestTable_Close(t *testing.T) {
	table, h, _, _ := newTestTable()
	a1, _ := closure(t, h, 0)
	a2, _ := closure(t, h, 2)
	table.Register(1, 1, a1)
	table.Register(1, Any, a2)
	heap.Decr(a1)
	heap.Decr(a2)

	table.Close()
	if table.Len() != 0 || h.Stats().Live != 0 {
		t.Fatalf("Len = %d, Live = %d", table.Len(), h.Stats().Live)
	}
}

// End to end: register A1 for (5, 100), dispatch, re-register with A2,
// dispatch again.
func TestTable_Scenario(t *testing.T) {
	rec := &recorder{}
	h := heap.New(heap.Options{Code: testCode, Machine: rec})
	q := NewQueue(8, nil)
	table := NewTable(h, q, nil)
	ctx := context.Background()

	a1ref, a1 := closure(t, h, 0)
	a2ref, a2 := closure(t, h, 2)

	table.Register(5, 100, a1ref)
	q.Post(Event{Source: 5, Value: 100})
	q.Pump(ctx)

	if len(rec.calls) != 1 || rec.calls[0] != (invocation{a1.Entry(), 100}) {
		t.Fatalf("calls = %+v", rec.calls)
	}

	before := a1.RefCount()
	table.Register(5, 100, a2ref)
	if a1.RefCount() != before-1 {
		t.Fatalf("A1 RefCount = %d, want %d", a1.RefCount(), before-1)
	}

	q.Post(Event{Source: 5, Value: 100})
	q.Pump(ctx)
	if len(rec.calls) != 2 || rec.calls[1] != (invocation{a2.Entry(), 100}) {
		t.Fatalf("calls = %+v", rec.calls)
	}
}
