package event

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Any matches every source or every value.
const Any int32 = 0

// Event is a hardware event notification.
type Event struct {
	Time   time.Time
	Source int32
	Value  int32
}

func (e Event) String() string {
	return fmt.Sprintf("event(%d, %d)", e.Source, e.Value)
}

// Parse reads an event written as "source:value". A missing value means Any.
func Parse(s string) (Event, error) {
	src, val, found := strings.Cut(strings.TrimSpace(s), ":")
	source, err := strconv.ParseInt(src, 10, 32)
	if err != nil {
		return Event{}, fmt.Errorf("event %q: source: %w", s, err)
	}
	e := Event{Source: int32(source), Value: Any}
	if found {
		value, err := strconv.ParseInt(val, 10, 32)
		if err != nil {
			return Event{}, fmt.Errorf("event %q: value: %w", s, err)
		}
		e.Value = int32(value)
	}
	return e, nil
}

// Listener receives events from a Bus. Implementations must be comparable:
// a bus delivers each event to a listener at most once, however many of its
// subscriptions match.
type Listener interface {
	OnEvent(ctx context.Context, e Event)
}

// Bus is the event source a Table subscribes with.
type Bus interface {
	Listen(source, value int32, l Listener) error
}
