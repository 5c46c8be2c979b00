package resource

// Handle is an opaque reference to a native value in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Kind identifies the kind of foreign block that owns a native value.
type Kind uint8

const (
	KindCustom Kind = iota + 1
	KindFinal
	KindAbstract
	KindBuffer
)

func (k Kind) String() string {
	switch k {
	case KindCustom:
		return "custom"
	case KindFinal:
		return "final"
	case KindAbstract:
		return "abstract"
	case KindBuffer:
		return "buffer"
	}
	return "unknown"
}

// EventType identifies a native value lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventReplaced
	EventDropped
)

// Event represents a native value lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Kind   Kind
	Type   EventType
}

// Observer receives notifications about native value lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Dropper is optionally implemented by native values that need cleanup.
type Dropper interface {
	Drop()
}
