// SPDX-License-Identifier: Apache-2.0

package irsrc

// MessageKind discriminates the upstream message types spec.md §4.1
// dispatches on.
type MessageKind int

const (
	MessageEvent MessageKind = iota
	MessagePacketBeginning
	MessagePacketEnd
	MessageStreamBeginning
	MessageStreamEnd
	MessageDiscardedEvents
	MessageDiscardedPackets
	MessageIteratorInactivity
)

func (k MessageKind) String() string {
	switch k {
	case MessageEvent:
		return "event"
	case MessagePacketBeginning:
		return "packet-beginning"
	case MessagePacketEnd:
		return "packet-end"
	case MessageStreamBeginning:
		return "stream-beginning"
	case MessageStreamEnd:
		return "stream-end"
	case MessageDiscardedEvents:
		return "discarded-events"
	case MessageDiscardedPackets:
		return "discarded-packets"
	case MessageIteratorInactivity:
		return "iterator-inactivity"
	default:
		return "unknown"
	}
}

// Message is the common surface of every upstream message. The
// dispatcher (internal/sink) type-switches Kind() to the narrower
// interfaces below, mirroring how pubsub.Change.Operation selects
// among Create/Modify/Delete/Restart in subscribe.go's ProcessChange.
type Message interface {
	Kind() MessageKind
}

// StreamBeginningMessage signals the start of a stream.
type StreamBeginningMessage interface {
	Message
	Stream() Stream
}

// StreamEndMessage signals the end of a stream.
type StreamEndMessage interface {
	Message
	Stream() Stream
}

// PacketBeginningMessage signals the start of a packet. ClockSnapshot's
// second return is false when the stream class has no packet-beginning
// default clock snapshot.
type PacketBeginningMessage interface {
	Message
	Stream() Stream
	ClockSnapshot() (uint64, bool)
}

// PacketEndMessage signals the end of a packet.
type PacketEndMessage interface {
	Message
	Stream() Stream
	ClockSnapshot() (uint64, bool)
}

// EventMessage carries one event record.
type EventMessage interface {
	Message
	Stream() Stream
	EventClass() EventClass
	ClockSnapshot() (uint64, bool)
	// CommonContext, SpecificContext and Payload are opaque value
	// trees handed to the packet writer façade unexamined (spec.md
	// §1 "does not validate event payload values").
	CommonContext() interface{}
	SpecificContext() interface{}
	Payload() interface{}
}

// DiscardedEventsMessage reports a range of lost event records.
type DiscardedEventsMessage interface {
	Message
	Stream() Stream
	BeginningClockSnapshot() (uint64, bool)
	EndClockSnapshot() (uint64, bool)
	Count() (uint64, bool)
}

// DiscardedPacketsMessage reports a range of lost packets.
type DiscardedPacketsMessage interface {
	Message
	Stream() Stream
	BeginningClockSnapshot() (uint64, bool)
	EndClockSnapshot() (uint64, bool)
	Count() (uint64, bool)
}

// IteratorInactivityMessage carries no data; spec.md §4.1 says it is
// simply ignored.
type IteratorInactivityMessage interface {
	Message
}
