package resource

// Handle identifies a slot in a Store. Handle 0 is reserved and always
// invalid.
type Handle uint32

// Type IDs for the values the runtime itself stores. Hosts pick their own
// IDs above TypeUser.
const (
	TypeBytes uint32 = iota + 1
	TypeText
	TypeUser uint32 = 0x100
)

// EventType identifies a resource lifecycle event.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

// Event represents a resource lifecycle event.
type Event struct {
	Value any
	// Ref is the reference the event concerns.
	Ref    *Ref
	Handle Handle
	TypeID uint32
	Type   EventType
}

// Observer receives notifications about resource lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Dropper is optionally implemented by values that need cleanup when their
// last reference goes away.
type Dropper interface {
	Drop()
}

// Byter is implemented by values with byte content. Such values take part
// in content comparisons made by collections with string semantics.
type Byter interface {
	Bytes() []byte
}
