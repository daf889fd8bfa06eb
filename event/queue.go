package event

import (
	"context"
	"errors"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
	"go.uber.org/zap"
)

// DefaultCapacity is the ring size used when NewQueue gets a non-positive
// capacity. Smaller positive capacities are raised to minCapacity.
const (
	DefaultCapacity = 64
	minCapacity     = 2
)

var ErrClosed = errors.New("event queue closed")

type subscription struct {
	l      Listener
	source int32
	value  int32
}

func (s subscription) matches(e Event) bool {
	return (s.source == Any || s.source == e.Source) &&
		(s.value == Any || s.value == e.Value)
}

// QueueStats reports queue activity.
type QueueStats struct {
	Posted    uint32
	Dropped   uint32
	Delivered uint64
}

// Queue is a Bus backed by a bounded multi-producer single-consumer ring.
// Post may be called from any goroutine; Listen, Pump and Wait belong to the
// single consumer.
type Queue struct {
	logger    *zap.Logger
	pending   *Event
	subs      []subscription
	delivered uint64
	ring      lfq.MPSC[Event]
	posted    atomix.Uint32
	dropped   atomix.Uint32
	closed    atomix.Uint32
}

// NewQueue creates a queue holding up to capacity undelivered events.
func NewQueue(capacity int, logger *zap.Logger) *Queue {
	switch {
	case capacity <= 0:
		capacity = DefaultCapacity
	case capacity < minCapacity:
		capacity = minCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &Queue{logger: logger}
	q.ring.Init(capacity)
	return q
}

// Listen subscribes l to events matching (source, value). Any matches every
// source or value.
func (q *Queue) Listen(source, value int32, l Listener) error {
	if q.closed.Load() != 0 {
		return ErrClosed
	}
	q.subs = append(q.subs, subscription{l: l, source: source, value: value})
	return nil
}

// Post enqueues e. It is safe for concurrent producers. It returns
// iox.ErrWouldBlock when the ring is full; the event is then dropped and
// counted.
func (q *Queue) Post(e Event) error {
	if q.closed.Load() != 0 {
		return ErrClosed
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if err := q.ring.Enqueue(&e); err != nil {
		q.dropped.Add(1)
		return err
	}
	q.posted.Add(1)
	return nil
}

// Pump delivers every queued event and returns how many were taken from the
// ring. It stops early when ctx is done.
func (q *Queue) Pump(ctx context.Context) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		e, ok := q.next()
		if !ok {
			return n, nil
		}
		n++
		q.deliver(ctx, e)
	}
}

// Wait blocks with adaptive backoff until an event is available or ctx is
// done.
func (q *Queue) Wait(ctx context.Context) error {
	var bo iox.Backoff
	for {
		if q.pending != nil {
			return nil
		}
		e, err := q.ring.Dequeue()
		if err == nil {
			q.pending = &e
			return nil
		}
		if !iox.IsWouldBlock(err) {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if q.closed.Load() != 0 {
			return ErrClosed
		}
		bo.Wait()
	}
}

// Close stops accepting posts and subscriptions. Queued events can still be
// pumped.
func (q *Queue) Close() {
	q.closed.Add(1)
}

func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Posted:    q.posted.Load(),
		Dropped:   q.dropped.Load(),
		Delivered: q.delivered,
	}
}

func (q *Queue) next() (Event, bool) {
	if q.pending != nil {
		e := *q.pending
		q.pending = nil
		return e, true
	}
	e, err := q.ring.Dequeue()
	if err != nil {
		return Event{}, false
	}
	return e, true
}

func (q *Queue) deliver(ctx context.Context, e Event) {
	subs := q.subs
	var seen []Listener
	for _, s := range subs {
		if !s.matches(e) || contains(seen, s.l) {
			continue
		}
		seen = append(seen, s.l)
		q.delivered++
		s.l.OnEvent(ctx, e)
	}
	if len(seen) == 0 {
		q.logger.Debug("event without listener", zap.Stringer("event", e))
	}
}

func contains(ls []Listener, l Listener) bool {
	for _, x := range ls {
		if x == l {
			return true
		}
	}
	return false
}
