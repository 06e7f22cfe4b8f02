// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"

	"github.com/ctf-tools/fs-sink/internal/irsrc"
)

// rawEnvValue mirrors irsrc.EnvValue on the wire: exactly one of Str
// or Int is present.
type rawEnvValue struct {
	Str *string `json:"str,omitempty"`
	Int *int64  `json:"int,omitempty"`
}

type rawEnumMapping struct {
	Label string `json:"label"`
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

type rawStructMember struct {
	Name       string         `json:"name"`
	FieldClass *rawFieldClass `json:"field_class"`
}

type rawOptionRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

type rawVariantOption struct {
	Name       string         `json:"name"`
	FieldClass *rawFieldClass `json:"field_class"`
}

// rawFieldClass is this driver's own field-class wire schema (spec.md
// places the real upstream IR out of scope, §1). One flat struct
// covers all 12 variants; a given line only ever populates the members
// relevant to its own "type".
type rawFieldClass struct {
	Type      string           `json:"type"`
	Alignment uint64           `json:"alignment,omitempty"`
	Signed    bool             `json:"signed,omitempty"`
	Width     uint64           `json:"width,omitempty"`
	Base      int              `json:"base,omitempty"`
	Mappings  []rawEnumMapping `json:"mappings,omitempty"`

	Members []rawStructMember `json:"members,omitempty"`

	Length  uint64         `json:"length,omitempty"`
	Element *rawFieldClass `json:"element,omitempty"`

	LengthIsBefore bool `json:"length_is_before,omitempty"`

	Inner            *rawFieldClass     `json:"inner,omitempty"`
	SelectorIsBefore bool               `json:"selector_is_before,omitempty"`
	Ranges           []rawOptionRange   `json:"ranges,omitempty"`
	Options          []rawVariantOption `json:"options,omitempty"`
}

func buildFieldClass(r *rawFieldClass) (irsrc.FieldClass, error) {
	if r == nil {
		return nil, nil
	}
	out := &jsonFieldClass{alignment: r.Alignment}

	switch r.Type {
	case "bool":
		out.kind = irsrc.FieldClassBool
	case "bit_array":
		out.kind = irsrc.FieldClassBitArray
		out.width = r.Width
	case "int":
		out.kind = irsrc.FieldClassInt
		out.signed = r.Signed
		out.width = r.Width
		out.base = r.Base
		for _, m := range r.Mappings {
			out.mappings = append(out.mappings, irsrc.EnumMapping{Label: m.Label, Start: m.Start, End: m.End})
		}
	case "float":
		out.kind = irsrc.FieldClassFloat
		out.width = r.Width
	case "string":
		out.kind = irsrc.FieldClassString
	case "struct":
		out.kind = irsrc.FieldClassStruct
		for _, m := range r.Members {
			mfc, err := buildFieldClass(m.FieldClass)
			if err != nil {
				return nil, err
			}
			out.members = append(out.members, irsrc.StructMember{Name: m.Name, FieldClass: mfc})
		}
	case "array":
		out.kind = irsrc.FieldClassArray
		out.length = r.Length
		elem, err := buildFieldClass(r.Element)
		if err != nil {
			return nil, err
		}
		out.element = elem
	case "static_blob":
		out.kind = irsrc.FieldClassStaticBlob
		out.length = r.Length
	case "sequence":
		out.kind = irsrc.FieldClassSequence
		elem, err := buildFieldClass(r.Element)
		if err != nil {
			return nil, err
		}
		out.element = elem
		out.lengthIsBefore = r.LengthIsBefore
	case "dyn_blob":
		out.kind = irsrc.FieldClassDynBlob
		out.lengthIsBefore = r.LengthIsBefore
	case "option":
		out.kind = irsrc.FieldClassOption
		inner, err := buildFieldClass(r.Inner)
		if err != nil {
			return nil, err
		}
		out.inner = inner
		out.selectorIsBefore = r.SelectorIsBefore
		for _, rg := range r.Ranges {
			out.ranges = append(out.ranges, irsrc.OptionRange{Start: rg.Start, End: rg.End})
		}
	case "variant":
		out.kind = irsrc.FieldClassVariant
		out.selectorIsBefore = r.SelectorIsBefore
		for _, o := range r.Options {
			ofc, err := buildFieldClass(o.FieldClass)
			if err != nil {
				return nil, err
			}
			out.options = append(out.options, irsrc.VariantOption{Name: o.Name, FieldClass: ofc})
		}
	default:
		return nil, fmt.Errorf("decode: unrecognized field class type %q", r.Type)
	}
	return out, nil
}

type rawClockClass struct {
	Name              *string `json:"name,omitempty"`
	UID               *string `json:"uid,omitempty"`
	Frequency         uint64  `json:"frequency"`
	OffsetSeconds     int64   `json:"offset_seconds,omitempty"`
	OffsetCycles      uint64  `json:"offset_cycles,omitempty"`
	OriginIsUnixEpoch bool    `json:"origin_is_unix_epoch,omitempty"`
}

func buildClockClass(r *rawClockClass) irsrc.ClockClass {
	if r == nil {
		return nil
	}
	out := &jsonClockClass{
		frequency:         r.Frequency,
		offsetSeconds:     r.OffsetSeconds,
		offsetCycles:      r.OffsetCycles,
		originIsUnixEpoch: r.OriginIsUnixEpoch,
	}
	if r.Name != nil {
		out.name, out.hasName = *r.Name, true
	} else if r.UID != nil {
		out.uid, out.hasUID = *r.UID, true
	}
	return out
}

type rawEventClass struct {
	ID              uint64         `json:"id"`
	Name            *string        `json:"name,omitempty"`
	LogLevel        *int           `json:"log_level,omitempty"`
	SpecificContext *rawFieldClass `json:"specific_context,omitempty"`
	Payload         *rawFieldClass `json:"payload,omitempty"`
}

func buildEventClass(r rawEventClass) (irsrc.EventClass, error) {
	out := &jsonEventClass{id: r.ID}
	if r.Name != nil {
		out.name, out.hasName = *r.Name, true
	}
	if r.LogLevel != nil {
		out.logLevel, out.hasLevel = *r.LogLevel, true
	}
	specific, err := buildFieldClass(r.SpecificContext)
	if err != nil {
		return nil, err
	}
	if specific != nil {
		out.specific, out.hasSpecific = specific, true
	}
	payload, err := buildFieldClass(r.Payload)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		out.payload, out.hasPayload = payload, true
	}
	return out, nil
}

type rawStreamClass struct {
	ID           uint64          `json:"id"`
	Name         *string         `json:"name,omitempty"`
	EventClasses []rawEventClass `json:"event_classes,omitempty"`

	SupportsPackets        bool `json:"supports_packets,omitempty"`
	PacketsHaveBeginningTS bool `json:"packets_have_beginning_ts,omitempty"`
	PacketsHaveEndTS       bool `json:"packets_have_end_ts,omitempty"`

	SupportsDiscardedEvents  bool `json:"supports_discarded_events,omitempty"`
	DiscardedEventsHaveTS    bool `json:"discarded_events_have_ts,omitempty"`
	SupportsDiscardedPackets bool `json:"supports_discarded_packets,omitempty"`
	DiscardedPacketsHaveTS   bool `json:"discarded_packets_have_ts,omitempty"`

	DefaultClockClass  *rawClockClass `json:"default_clock_class,omitempty"`
	EventCommonContext *rawFieldClass `json:"event_common_context,omitempty"`
	PacketContext      *rawFieldClass `json:"packet_context,omitempty"`
}

func buildStreamClass(r rawStreamClass) (irsrc.StreamClass, error) {
	out := &jsonStreamClass{
		id:                       r.ID,
		supportsPackets:          r.SupportsPackets,
		packetsHaveBeginningTS:   r.PacketsHaveBeginningTS,
		packetsHaveEndTS:         r.PacketsHaveEndTS,
		supportsDiscardedEvents:  r.SupportsDiscardedEvents,
		discardedEventsHaveTS:    r.DiscardedEventsHaveTS,
		supportsDiscardedPackets: r.SupportsDiscardedPackets,
		discardedPacketsHaveTS:   r.DiscardedPacketsHaveTS,
	}
	if r.Name != nil {
		out.name, out.hasName = *r.Name, true
	}
	out.eventClassByID = make(map[uint64]irsrc.EventClass, len(r.EventClasses))
	for _, rec := range r.EventClasses {
		ec, err := buildEventClass(rec)
		if err != nil {
			return nil, err
		}
		out.eventClasses = append(out.eventClasses, ec)
		out.eventClassByID[rec.ID] = ec
	}
	if cc := buildClockClass(r.DefaultClockClass); cc != nil {
		out.defaultClockClass, out.hasDefaultClockClass = cc, true
	}
	ecc, err := buildFieldClass(r.EventCommonContext)
	if err != nil {
		return nil, err
	}
	if ecc != nil {
		out.eventCommonContext, out.hasEventCommonContext = ecc, true
	}
	pc, err := buildFieldClass(r.PacketContext)
	if err != nil {
		return nil, err
	}
	if pc != nil {
		out.packetContext, out.hasPacketContext = pc, true
	}
	return out, nil
}

// rawEnvelope is the single NDJSON record shape every line on stdin
// decodes into; Kind discriminates which of its optional fields apply.
type rawEnvelope struct {
	Kind string `json:"kind"`

	TraceID       string                  `json:"trace_id,omitempty"`
	Name          *string                 `json:"name,omitempty"`
	Environment   map[string]rawEnvValue  `json:"environment,omitempty"`
	StreamClasses []rawStreamClass        `json:"stream_classes,omitempty"`

	StreamID      string `json:"stream_id,omitempty"`
	StreamClassID uint64 `json:"stream_class_id,omitempty"`

	ClockSnapshot *uint64 `json:"clock_snapshot,omitempty"`

	EventClassID    uint64      `json:"event_class_id,omitempty"`
	CommonContext   interface{} `json:"common_context,omitempty"`
	SpecificContext interface{} `json:"specific_context,omitempty"`
	Payload         interface{} `json:"payload,omitempty"`

	BeginningCS *uint64 `json:"beginning_cs,omitempty"`
	EndCS       *uint64 `json:"end_cs,omitempty"`
	Count       *uint64 `json:"count,omitempty"`
}

func parseLine(line []byte) (*rawEnvelope, error) {
	var env rawEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("decode: malformed NDJSON record: %w", err)
	}
	return &env, nil
}
