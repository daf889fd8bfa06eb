package resource

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/pxt-runtime/errors"
)

// Options configures a Store.
type Options struct {
	Sink   errors.Sink
	Logger *zap.Logger
}

// Store holds host-side reference-counted values. Each value lives in a
// slot until its count drops to zero. Freed slots are reused under a new
// generation, so a Ref to the old value never reaches the new one.
type Store struct {
	sink      errors.Sink
	logger    *zap.Logger
	entries   []entry
	freeList  []Handle
	observers []Observer
	mu        sync.Mutex
	closed    bool
}

type entry struct {
	value  any
	ref    *Ref
	typeID uint32
	refcnt uint32
	gen    uint32
	valid  bool
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := opts.Sink
	if sink == nil {
		sink = errors.PanicSink{Logger: logger}
	}
	return &Store{
		sink:     sink,
		logger:   logger,
		entries:  make([]entry, 0, 16),
		freeList: make([]Handle, 0, 8),
	}
}

// New stores value with a reference count of one. It returns nil once the
// store is closed.
func (s *Store) New(typeID uint32, value any) *Ref {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	e := entry{typeID: typeID, value: value, refcnt: 1, valid: true}
	var handle Handle
	if n := len(s.freeList); n > 0 {
		handle = s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		e.gen = s.entries[handle-1].gen
	} else {
		s.entries = append(s.entries, entry{})
		handle = Handle(len(s.entries))
	}
	ref := &Ref{store: s, handle: handle, gen: e.gen}
	e.ref = ref
	s.entries[handle-1] = e
	s.mu.Unlock()

	s.notify(Event{Type: EventCreated, Handle: handle, TypeID: typeID, Value: value, Ref: ref})
	return ref
}

// Get retrieves a value by handle.
func (s *Store) Get(handle Handle) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(handle)
	if e == nil {
		return nil, false
	}
	return e.value, true
}

// GetTyped retrieves a value only if it was stored with typeID.
func (s *Store) GetTyped(handle Handle, typeID uint32) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(handle)
	if e == nil || e.typeID != typeID {
		return nil, false
	}
	return e.value, true
}

// Len returns the number of live values.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries) - len(s.freeList)
}

// Each calls fn for every live value until fn returns false.
func (s *Store) Each(fn func(Handle, uint32, any) bool) {
	s.mu.Lock()
	live := make([]Event, 0, len(s.entries))
	for i, e := range s.entries {
		if e.valid {
			live = append(live, Event{Handle: Handle(i + 1), TypeID: e.typeID, Value: e.value})
		}
	}
	s.mu.Unlock()

	for _, e := range live {
		if !fn(e.Handle, e.TypeID, e.Value) {
			return
		}
	}
}

// Subscribe adds an observer for lifecycle events.
func (s *Store) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Unsubscribe removes an observer.
func (s *Store) Unsubscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, obs := range s.observers {
		if obs == o {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// Close drops every live value regardless of its count and stops accepting
// new ones.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var dropped []Event
	for i := range s.entries {
		e := &s.entries[i]
		if e.valid {
			dropped = append(dropped, Event{Type: EventDropped, Handle: Handle(i + 1), TypeID: e.typeID, Value: e.value})
			*e = entry{}
		}
	}
	s.entries = nil
	s.freeList = nil
	s.mu.Unlock()

	for _, ev := range dropped {
		s.finalize(ev)
	}
	if len(dropped) > 0 {
		s.logger.Debug("resource store closed", zap.Int("dropped", len(dropped)))
	}
	return nil
}

func (s *Store) lookup(handle Handle) *entry {
	if handle == 0 || int(handle) > len(s.entries) {
		return nil
	}
	e := &s.entries[handle-1]
	if !e.valid {
		return nil
	}
	return e
}

// lookupRef resolves r only while its generation still owns the slot.
func (s *Store) lookupRef(r *Ref) *entry {
	e := s.lookup(r.handle)
	if e == nil || e.gen != r.gen {
		return nil
	}
	return e
}

func (s *Store) incr(r *Ref) {
	s.mu.Lock()
	e := s.lookupRef(r)
	if e == nil {
		s.mu.Unlock()
		errors.Fatal(s.sink, errors.Deleted("resource.incr", errors.SubIncrDeleted))
		return
	}
	e.refcnt++
	s.mu.Unlock()
}

func (s *Store) decr(r *Ref) {
	s.mu.Lock()
	e := s.lookupRef(r)
	if e == nil {
		s.mu.Unlock()
		errors.Fatal(s.sink, errors.Deleted("resource.decr", errors.SubDecrDeleted))
		return
	}
	e.refcnt--
	if e.refcnt > 0 {
		s.mu.Unlock()
		return
	}

	ev := Event{Type: EventDropped, Handle: r.handle, TypeID: e.typeID, Value: e.value, Ref: r}
	*e = entry{gen: e.gen + 1}
	s.freeList = append(s.freeList, r.handle)
	s.mu.Unlock()

	s.finalize(ev)
}

func (s *Store) refCount(r *Ref) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookupRef(r)
	if e == nil {
		return 0
	}
	return int(e.refcnt)
}

func (s *Store) value(r *Ref) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookupRef(r)
	if e == nil {
		return nil
	}
	return e.value
}

// finalize runs the destructor and notifies observers outside the lock.
func (s *Store) finalize(ev Event) {
	if d, ok := ev.Value.(Dropper); ok {
		d.Drop()
	}
	s.notify(ev)
}

func (s *Store) notify(e Event) {
	s.mu.Lock()
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()
	for _, o := range observers {
		o.OnResourceEvent(e)
	}
}
