// SPDX-License-Identifier: Apache-2.0

// Package irsrc describes the read-only upstream trace-IR contract the
// sink consumes (spec.md §1, §4.2 "Input contract", §6). The plugin-host
// ABI, the message-iterator abstraction, and the concrete trace-IR
// implementation are external collaborators out of scope for this
// repository (spec.md §1) — this package only names the interfaces a
// host implementation must satisfy, the same way
// pubsub/pubsubintf.go names Publication/Subscription without
// implementing a transport.
package irsrc

// EnvValue is an LTTng-style environment value: either a string or a
// signed integer, as trace environments carry both (spec.md §4.5).
type EnvValue struct {
	IsString bool
	Str      string
	Int      int64
}

// ClockClass is a read-only view of an upstream clock class (spec.md §3
// ClkClsCfg, §4.2 "Numeric semantics").
type ClockClass interface {
	Name() (string, bool)
	UID() (string, bool)
	Frequency() uint64
	OffsetSeconds() int64
	OffsetCycles() uint64
	OriginIsUnixEpoch() bool
}

// FieldClassKind discriminates the upstream field-class variants named
// in spec.md §3. The translator type-switches on the narrower
// interfaces below rather than reinterpreting a tagged struct (spec.md
// §9 "Polymorphic field classes").
type FieldClassKind int

const (
	FieldClassBool FieldClassKind = iota
	FieldClassBitArray
	FieldClassInt
	FieldClassFloat
	FieldClassString
	FieldClassStruct
	FieldClassArray
	FieldClassStaticBlob
	FieldClassSequence
	FieldClassDynBlob
	FieldClassOption
	FieldClassVariant
)

// FieldClass is the common surface every upstream field class exposes.
type FieldClass interface {
	Kind() FieldClassKind
	Alignment() uint64
	// UserAttributes exposes the opaque attribute tree the translator
	// passes through to CTF-IR unchanged (spec.md §4.2).
	UserAttributes() map[string]interface{}
}

// IntFieldClass narrows FieldClass when Kind() == FieldClassInt.
type IntFieldClass interface {
	FieldClass
	Signed() bool
	Width() uint64
	Base() int // 2, 8, 10, or 16
	// EnumMappings is empty for a plain integer field class.
	EnumMappings() []EnumMapping
}

// EnumMapping is one label -> [start, end] range pair of an enumeration
// field class (spec.md §4.3 "Enumerations").
type EnumMapping struct {
	Label string
	Start uint64
	End   uint64
}

// FloatFieldClass narrows FieldClass when Kind() == FieldClassFloat.
type FloatFieldClass interface {
	FieldClass
	Width() uint64 // 32 or 64
}

// StructFieldClass narrows FieldClass when Kind() == FieldClassStruct.
type StructFieldClass interface {
	FieldClass
	Members() []StructMember
}

// StructMember is one ordered member of a structure field class.
type StructMember struct {
	Name       string
	FieldClass FieldClass
}

// ArrayFieldClass narrows FieldClass when Kind() == FieldClassArray.
type ArrayFieldClass interface {
	FieldClass
	Length() uint64
	ElementFieldClass() FieldClass
}

// StaticBlobFieldClass narrows FieldClass when Kind() == FieldClassStaticBlob.
type StaticBlobFieldClass interface {
	FieldClass
	Length() uint64
}

// FieldLocation identifies a length/selector field by its upstream
// relationship, before the translator resolves it into a CTF-IR
// location (spec.md §4.2 "CTF 2" case).
type FieldLocation interface {
	// TargetFieldClass is the referenced length/selector field class,
	// nil if the relationship has no concrete target (an anonymous
	// length/selector the translator must synthesize).
	TargetFieldClass() FieldClass
}

// SequenceFieldClass narrows FieldClass when Kind() == FieldClassSequence.
type SequenceFieldClass interface {
	FieldClass
	ElementFieldClass() FieldClass
	// LengthFieldLocation is nil when the upstream provides no
	// resolvable length relationship (CTF 1 "length-before" case).
	LengthFieldLocation() FieldLocation
	LengthIsBefore() bool
}

// DynBlobFieldClass narrows FieldClass when Kind() == FieldClassDynBlob.
type DynBlobFieldClass interface {
	FieldClass
	LengthFieldLocation() FieldLocation
	LengthIsBefore() bool
}

// OptionRange is one [start, end] integer range selecting an option
// field class (spec.md §3 "Option(... ranges?)").
type OptionRange struct {
	Start int64
	End   int64
}

// OptionFieldClass narrows FieldClass when Kind() == FieldClassOption.
type OptionFieldClass interface {
	FieldClass
	InnerFieldClass() FieldClass
	SelectorFieldLocation() FieldLocation
	SelectorIsBefore() bool
	Ranges() []OptionRange
}

// VariantOption is one named, ordered option of a variant field class.
type VariantOption struct {
	Name       string
	FieldClass FieldClass
}

// VariantFieldClass narrows FieldClass when Kind() == FieldClassVariant.
type VariantFieldClass interface {
	FieldClass
	Options() []VariantOption
	SelectorFieldLocation() FieldLocation
	SelectorIsBefore() bool
}

// EventClass is a read-only view of an upstream event class. Identity
// is by pointer: two EventClass values obtained from the same upstream
// event class must compare equal, the "opaque newtype wrapping a
// pointer" of spec.md §9 "Upstream handle equality" — host
// implementations should back this interface with a pointer receiver.
type EventClass interface {
	ID() uint64
	Name() (string, bool)
	// LogLevel returns one of the 15 recognized log-level values
	// (spec.md §4.4) and whether a level is set at all.
	LogLevel() (int, bool)
	SpecificContextFieldClass() (FieldClass, bool)
	PayloadFieldClass() (FieldClass, bool)
}

// StreamClass is a read-only view of an upstream stream class.
type StreamClass interface {
	ID() uint64
	Name() (string, bool)
	EventClasses() []EventClass

	SupportsPackets() bool
	PacketsHaveBeginningDefaultClockSnapshot() bool
	PacketsHaveEndDefaultClockSnapshot() bool

	SupportsDiscardedEvents() bool
	DiscardedEventsHaveDefaultClockSnapshots() bool
	SupportsDiscardedPackets() bool
	DiscardedPacketsHaveDefaultClockSnapshots() bool

	DefaultClockClass() (ClockClass, bool)
	EventCommonContextFieldClass() (FieldClass, bool)
	PacketContextFieldClass() (FieldClass, bool)
}

// Trace is a read-only view of an upstream trace handle. OnDestroy
// registers the destruction listener spec.md §3/§9 describes as the
// synchronization point for metadata flushing: the host guarantees it
// is invoked exactly once, after which the trace handle must not be
// dereferenced again.
type Trace interface {
	Name() (string, bool)
	Environment() map[string]EnvValue
	StreamClasses() []StreamClass
	OnDestroy(func())
}

// Stream is a read-only view of an upstream stream handle (a single
// instance of a StreamClass within a Trace).
type Stream interface {
	ID() uint64
	Class() StreamClass
	Trace() Trace
}
