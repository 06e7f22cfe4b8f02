// SPDX-License-Identifier: Apache-2.0

// The concrete irsrc.* implementations below stand in for the
// plugin-host trace-IR that spec.md §1 places out of scope ("the
// plugin-host ABI used to register the component ... we only describe
// the message contract"). They are fed entirely from the
// newline-delimited JSON stream this driver reads on stdin.
package main

import (
	"github.com/ctf-tools/fs-sink/internal/irsrc"
)

type jsonFieldClass struct {
	kind      irsrc.FieldClassKind
	alignment uint64
	attrs     map[string]interface{}

	signed   bool
	width    uint64
	base     int
	mappings []irsrc.EnumMapping

	members []irsrc.StructMember

	length  uint64
	element irsrc.FieldClass

	lengthIsBefore bool

	inner            irsrc.FieldClass
	selectorIsBefore bool
	ranges           []irsrc.OptionRange

	options []irsrc.VariantOption
}

func (f *jsonFieldClass) Kind() irsrc.FieldClassKind             { return f.kind }
func (f *jsonFieldClass) Alignment() uint64                      { return f.alignment }
func (f *jsonFieldClass) UserAttributes() map[string]interface{} { return f.attrs }
func (f *jsonFieldClass) Signed() bool                           { return f.signed }
func (f *jsonFieldClass) Width() uint64                          { return f.width }
func (f *jsonFieldClass) Base() int                              { return f.base }
func (f *jsonFieldClass) EnumMappings() []irsrc.EnumMapping      { return f.mappings }
func (f *jsonFieldClass) Members() []irsrc.StructMember          { return f.members }
func (f *jsonFieldClass) Length() uint64                         { return f.length }
func (f *jsonFieldClass) ElementFieldClass() irsrc.FieldClass    { return f.element }

// LengthFieldLocation and SelectorFieldLocation are always nil: this
// driver's wire format has no notion of referencing a sibling member
// by name, so the translator always falls back to length/selector
// ordering under CTF 1 and synthesizes a hidden member under CTF 2
// (spec.md §4.2). A real plugin host wiring a richer upstream IR would
// resolve these to the actual sibling irsrc.FieldClass.
func (f *jsonFieldClass) LengthFieldLocation() irsrc.FieldLocation   { return nil }
func (f *jsonFieldClass) LengthIsBefore() bool                      { return f.lengthIsBefore }
func (f *jsonFieldClass) InnerFieldClass() irsrc.FieldClass         { return f.inner }
func (f *jsonFieldClass) SelectorFieldLocation() irsrc.FieldLocation { return nil }
func (f *jsonFieldClass) SelectorIsBefore() bool                     { return f.selectorIsBefore }
func (f *jsonFieldClass) Ranges() []irsrc.OptionRange                { return f.ranges }
func (f *jsonFieldClass) Options() []irsrc.VariantOption             { return f.options }

type jsonClockClass struct {
	name    string
	hasName bool
	uid     string
	hasUID  bool

	frequency         uint64
	offsetSeconds     int64
	offsetCycles      uint64
	originIsUnixEpoch bool
}

func (c *jsonClockClass) Name() (string, bool)    { return c.name, c.hasName }
func (c *jsonClockClass) UID() (string, bool)     { return c.uid, c.hasUID }
func (c *jsonClockClass) Frequency() uint64       { return c.frequency }
func (c *jsonClockClass) OffsetSeconds() int64    { return c.offsetSeconds }
func (c *jsonClockClass) OffsetCycles() uint64    { return c.offsetCycles }
func (c *jsonClockClass) OriginIsUnixEpoch() bool { return c.originIsUnixEpoch }

type jsonEventClass struct {
	id         uint64
	name       string
	hasName    bool
	logLevel   int
	hasLevel   bool
	specific   irsrc.FieldClass
	hasSpecific bool
	payload    irsrc.FieldClass
	hasPayload bool
}

func (e *jsonEventClass) ID() uint64            { return e.id }
func (e *jsonEventClass) Name() (string, bool)  { return e.name, e.hasName }
func (e *jsonEventClass) LogLevel() (int, bool) { return e.logLevel, e.hasLevel }
func (e *jsonEventClass) SpecificContextFieldClass() (irsrc.FieldClass, bool) {
	return e.specific, e.hasSpecific
}
func (e *jsonEventClass) PayloadFieldClass() (irsrc.FieldClass, bool) {
	return e.payload, e.hasPayload
}

type jsonStreamClass struct {
	id           uint64
	name         string
	hasName      bool
	eventClasses []irsrc.EventClass

	supportsPackets        bool
	packetsHaveBeginningTS bool
	packetsHaveEndTS       bool

	supportsDiscardedEvents  bool
	discardedEventsHaveTS    bool
	supportsDiscardedPackets bool
	discardedPacketsHaveTS   bool

	defaultClockClass    irsrc.ClockClass
	hasDefaultClockClass bool

	eventCommonContext    irsrc.FieldClass
	hasEventCommonContext bool
	packetContext         irsrc.FieldClass
	hasPacketContext      bool

	// eventClassByID is a decoder-only convenience index, not part of
	// the irsrc.StreamClass surface.
	eventClassByID map[uint64]irsrc.EventClass
}

func (s *jsonStreamClass) ID() uint64                   { return s.id }
func (s *jsonStreamClass) Name() (string, bool)         { return s.name, s.hasName }
func (s *jsonStreamClass) EventClasses() []irsrc.EventClass { return s.eventClasses }

func (s *jsonStreamClass) SupportsPackets() bool                        { return s.supportsPackets }
func (s *jsonStreamClass) PacketsHaveBeginningDefaultClockSnapshot() bool { return s.packetsHaveBeginningTS }
func (s *jsonStreamClass) PacketsHaveEndDefaultClockSnapshot() bool      { return s.packetsHaveEndTS }

func (s *jsonStreamClass) SupportsDiscardedEvents() bool { return s.supportsDiscardedEvents }
func (s *jsonStreamClass) DiscardedEventsHaveDefaultClockSnapshots() bool {
	return s.discardedEventsHaveTS
}
func (s *jsonStreamClass) SupportsDiscardedPackets() bool { return s.supportsDiscardedPackets }
func (s *jsonStreamClass) DiscardedPacketsHaveDefaultClockSnapshots() bool {
	return s.discardedPacketsHaveTS
}

func (s *jsonStreamClass) DefaultClockClass() (irsrc.ClockClass, bool) {
	return s.defaultClockClass, s.hasDefaultClockClass
}
func (s *jsonStreamClass) EventCommonContextFieldClass() (irsrc.FieldClass, bool) {
	return s.eventCommonContext, s.hasEventCommonContext
}
func (s *jsonStreamClass) PacketContextFieldClass() (irsrc.FieldClass, bool) {
	return s.packetContext, s.hasPacketContext
}

type jsonTrace struct {
	name             string
	hasName          bool
	environment      map[string]irsrc.EnvValue
	streamClasses    []irsrc.StreamClass
	destroyCallbacks []func()
}

func (t *jsonTrace) Name() (string, bool)                   { return t.name, t.hasName }
func (t *jsonTrace) Environment() map[string]irsrc.EnvValue  { return t.environment }
func (t *jsonTrace) StreamClasses() []irsrc.StreamClass      { return t.streamClasses }
func (t *jsonTrace) OnDestroy(f func())                      { t.destroyCallbacks = append(t.destroyCallbacks, f) }

func (t *jsonTrace) fireDestroy() {
	for _, f := range t.destroyCallbacks {
		f()
	}
}

type jsonStream struct {
	id    uint64
	class irsrc.StreamClass
	trace irsrc.Trace
}

func (s *jsonStream) ID() uint64             { return s.id }
func (s *jsonStream) Class() irsrc.StreamClass { return s.class }
func (s *jsonStream) Trace() irsrc.Trace     { return s.trace }
