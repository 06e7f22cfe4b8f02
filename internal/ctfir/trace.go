// SPDX-License-Identifier: Apache-2.0

package ctfir

import (
	uuid "github.com/satori/go.uuid"
)

// EnvValue mirrors irsrc.EnvValue; ctfir stays independent of irsrc so
// the dependency order of spec.md §2 (C5, C6, C7 -> C2 -> C3, C4 -> C1)
// holds without a back-edge from the IR tree to the upstream contract
// package.
type EnvValue struct {
	IsString bool
	Str      string
	Int      int64
}

// ClockClass is the CTF-IR clock-class representation (spec.md §3,
// §4.2 "Numeric semantics"). OffsetCycles/OffsetSeconds are emitted by
// C3/C4 only when non-zero, per spec.md §4.2.
type ClockClass struct {
	Name              string
	UID               string
	HasName           bool
	Frequency         uint64
	OffsetSeconds     int64
	OffsetCycles      uint64
	OriginIsUnixEpoch bool
}

// EventClass is the CTF-IR representation of one event class.
type EventClass struct {
	ID uint64
	// Name is empty when the upstream event class is anonymous.
	Name string
	// LogLevel is the canonical bt-ns log-level tag (spec.md §4.4),
	// empty if the event class has none.
	LogLevel        string
	SpecificContext FieldClass
	Payload         FieldClass
}

// StreamClass is the CTF-IR representation of one stream class,
// carrying the feature flags §4.1's stream-beginning validation reads.
type StreamClass struct {
	ID   uint64
	Name string

	DefaultClockClass *ClockClass

	// EventCommonContext and PacketContext are the *user-declared*
	// portions only; C3/C4 prepend the fixed header/context members
	// spec.md §4.3/§4.4 mandate.
	EventCommonContext FieldClass
	PacketContext      FieldClass

	EventClasses []*EventClass

	SupportsPackets                bool
	PacketsHaveBeginningTS          bool
	PacketsHaveEndTS                bool
	SupportsDiscardedEvents         bool
	DiscardedEventsHaveTS           bool
	SupportsDiscardedPackets        bool
	DiscardedPacketsHaveTS          bool
}

// Trace is the CTF-IR root for one trace (spec.md §3). UUID
// disambiguates synthesized member names across traces (spec.md §3,
// §4.2).
type Trace struct {
	UUID          uuid.UUID
	Name          string
	Environment   map[string]EnvValue
	StreamClasses []*StreamClass
}
