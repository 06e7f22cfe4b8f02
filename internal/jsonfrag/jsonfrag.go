// SPDX-License-Identifier: Apache-2.0

// Package jsonfrag implements C4, the CTF-IR to CTF 2 JSON-fragment
// metadata emitter (spec.md §4.4). Like internal/tsdl, it has no direct
// corpus analogue; it follows the teacher's preference for hand-built
// encoding over generic marshaling by constructing each fragment
// field-by-field as a plain map. Output is deterministic across runs
// because encoding/json writes map keys in sorted order.
package jsonfrag

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ctf-tools/fs-sink/internal/ctfir"
)

// recordSeparator frames every fragment (spec.md §4.4: "0x1E-framed
// JSON fragments").
const recordSeparator = 0x1E

// Emit renders trace as the ordered sequence of CTF 2 JSON fragments:
// preamble, trace-class, then per stream class its clock class (if
// any), data-stream-class, and event-record-classes, in that mandatory
// order (spec.md §4.4).
func Emit(trace *ctfir.Trace) ([]byte, error) {
	var buf bytes.Buffer

	if err := writeFragment(&buf, preambleFragment(trace)); err != nil {
		return nil, err
	}
	if err := writeFragment(&buf, traceClassFragment(trace)); err != nil {
		return nil, err
	}

	for _, sc := range trace.StreamClasses {
		if sc.DefaultClockClass != nil {
			if err := writeFragment(&buf, clockClassFragment(sc.DefaultClockClass)); err != nil {
				return nil, err
			}
		}
		dsc, err := dataStreamClassFragment(trace, sc)
		if err != nil {
			return nil, err
		}
		if err := writeFragment(&buf, dsc); err != nil {
			return nil, err
		}
		for _, ec := range sc.EventClasses {
			erc, err := eventRecordClassFragment(sc, ec)
			if err != nil {
				return nil, err
			}
			if err := writeFragment(&buf, erc); err != nil {
				return nil, err
			}
		}
	}

	return buf.Bytes(), nil
}

func writeFragment(buf *bytes.Buffer, v interface{}) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("jsonfrag: marshal fragment: %w", err)
	}
	buf.WriteByte(recordSeparator)
	buf.Write(encoded)
	buf.WriteByte('\n')
	return nil
}

// preambleFragment builds the mandatory first fragment of every
// metadata stream (spec.md §4.4 point 1), carrying the trace UUID as a
// raw byte array and the bt-ns sink-identification attribute. Ground
// truth: translate_trace_ctf_ir_to_json's preamble literal
// (translate-ctf-ir-to-json.cpp, ~line 872).
func preambleFragment(trace *ctfir.Trace) map[string]interface{} {
	uuid := make([]int, len(trace.UUID))
	for i, b := range trace.UUID {
		uuid[i] = int(b)
	}
	return map[string]interface{}{
		"type":    "preamble",
		"version": 2,
		"uuid":    uuid,
		"attrs": map[string]interface{}{
			"bt-ns": map[string]interface{}{
				"sink.ctf.fs": true,
			},
		},
	}
}

// traceClassFragment builds the mandatory second fragment, carrying
// the fixed packet-header-fc schema (spec.md §4.4 point 2, "Packet
// header") every packet's binary header satisfies. Ground truth:
// jsonTraceClsFromFs (translate-ctf-ir-to-json.cpp, ~lines 805-859).
func traceClassFragment(trace *ctfir.Trace) map[string]interface{} {
	m := map[string]interface{}{
		"type":            "trace-class",
		"packet-header-fc": packetHeaderFieldClass(),
	}
	if trace.Name != "" {
		m["name"] = trace.Name
	}
	if len(trace.Environment) > 0 {
		env := make(map[string]interface{}, len(trace.Environment))
		for k, v := range trace.Environment {
			if v.IsString {
				env[k] = v.Str
			} else {
				env[k] = v.Int
			}
		}
		m["environment"] = env
	}
	return m
}

func packetHeaderFieldClass() map[string]interface{} {
	return map[string]interface{}{
		"type":      "structure",
		"min-alignment": 8,
		"member-classes": []interface{}{
			fixedUnsignedIntMember("magic", 32, "packet-magic-number", 16),
			memberJSON("uuid", map[string]interface{}{
				"type":   "static-length-blob",
				"length": 16,
				"roles":  []string{"metadata-stream-uuid"},
			}),
			fixedUnsignedIntMember("stream_id", 64, "data-stream-class-id", 10),
			fixedUnsignedIntMember("stream_instance_id", 64, "data-stream-id", 10),
		},
	}
}

func clockClassFragment(cc *ctfir.ClockClass) map[string]interface{} {
	m := map[string]interface{}{
		"type":      "clock-class",
		"frequency": cc.Frequency,
	}
	if cc.HasName {
		if cc.Name != "" {
			m["name"] = cc.Name
		} else {
			m["uid"] = cc.UID
		}
	}
	if cc.OriginIsUnixEpoch {
		m["origin"] = "unix-epoch"
	}
	if cc.OffsetSeconds != 0 || cc.OffsetCycles != 0 {
		m["offset-from-origin"] = map[string]interface{}{
			"seconds":       cc.OffsetSeconds,
			"cycles": cc.OffsetCycles,
		}
	}
	return m
}

func dataStreamClassFragment(trace *ctfir.Trace, sc *ctfir.StreamClass) (map[string]interface{}, error) {
	m := map[string]interface{}{
		"type": "data-stream-class",
		"id":   sc.ID,
	}
	if sc.Name != "" {
		m["name"] = sc.Name
	}
	if sc.DefaultClockClass != nil {
		m["default-clock-class-id"] = sc.ID
	}
	m["packets-have-beginning-default-clock-snapshot"] = sc.PacketsHaveBeginningTS
	m["packets-have-end-default-clock-snapshot"] = sc.PacketsHaveEndTS
	m["supports-discarded-events"] = sc.SupportsDiscardedEvents
	if sc.SupportsDiscardedEvents {
		m["discarded-events-have-default-clock-snapshots"] = sc.DiscardedEventsHaveTS
	}
	m["supports-discarded-packets"] = sc.SupportsDiscardedPackets
	if sc.SupportsDiscardedPackets {
		m["discarded-packets-have-default-clock-snapshots"] = sc.DiscardedPacketsHaveTS
	}

	pktCtx, err := packetContextFieldClass(trace, sc)
	if err != nil {
		return nil, err
	}
	m["packet-context-field-class"] = pktCtx
	m["event-record-header-field-class"] = eventRecordHeaderFieldClass(trace, sc)

	if sc.EventCommonContext != nil {
		fcJSON, err := fieldClassJSON(sc.EventCommonContext)
		if err != nil {
			return nil, err
		}
		m["event-record-common-context-field-class"] = fcJSON
	}

	return m, nil
}

// packetContextFieldClass prepends the fixed, trace-UUID-prefixed
// packet-context members (spec.md §4.4 point 3) to the user-declared
// packet context, if any. Ground truth: jsonDataStreamClsFromFs
// (translate-ctf-ir-to-json.cpp, ~lines 711-803).
func packetContextFieldClass(trace *ctfir.Trace, sc *ctfir.StreamClass) (map[string]interface{}, error) {
	prefix := trace.UUID.String()
	members := []interface{}{
		fixedUnsignedIntMember(prefix+"-packet_size", 64, "packet-total-length", 10),
		fixedUnsignedIntMember(prefix+"-content_size", 64, "packet-content-length", 10),
	}
	if sc.PacketsHaveBeginningTS {
		members = append(members, fixedUnsignedIntMember(prefix+"-timestamp_begin", 64, "default-clock-timestamp", 10))
	}
	if sc.PacketsHaveEndTS {
		members = append(members, fixedUnsignedIntMember(prefix+"-timestamp_end", 64, "packet-end-default-clock-timestamp", 10))
	}
	if sc.SupportsDiscardedEvents {
		members = append(members, fixedUnsignedIntMember(prefix+"-events_discarded", 64, "discarded-event-record-counter-snapshot", 10))
	}
	members = append(members, fixedUnsignedIntMember(prefix+"-packet_seq_num", 64, "packet-sequence-number", 10))

	if sc.PacketContext != nil {
		userCtx, ok := sc.PacketContext.(*ctfir.StructFieldClass)
		if !ok {
			return nil, fmt.Errorf("jsonfrag: packet context field class must be a structure")
		}
		for _, m := range userCtx.Members {
			fcJSON, err := fieldClassJSON(m.FieldClass)
			if err != nil {
				return nil, err
			}
			members = append(members, memberJSON(m.Name, fcJSON))
		}
	}

	return map[string]interface{}{
		"type":              "structure",
		"member-classes": members,
	}, nil
}

// eventRecordHeaderFieldClass builds the fixed event-record-header
// schema (spec.md §4.4 point 4): an "id" member always, and a
// "timestamp" member only when the stream class has a default clock
// class. Ground truth: jsonDataStreamClsFromFs's eventRecordHeaderFc
// (translate-ctf-ir-to-json.cpp, ~lines 711-803).
func eventRecordHeaderFieldClass(trace *ctfir.Trace, sc *ctfir.StreamClass) map[string]interface{} {
	prefix := trace.UUID.String()
	members := []interface{}{
		fixedUnsignedIntMember(prefix+"-id", 64, "event-record-class-id", 10),
	}
	if sc.DefaultClockClass != nil {
		members = append(members, fixedUnsignedIntMember(prefix+"-timestamp", 64, "default-clock-timestamp", 10))
	}
	return map[string]interface{}{
		"type":              "structure",
		"member-classes": members,
	}
}

// fixedUnsignedIntMember builds one fixed-length-unsigned-integer
// member carrying the CTF 2 role every fixed-schema member must set
// (spec.md §4.4). prefDispBase is only rendered when it differs from
// the 10 (decimal) default. Ground truth: jsonFixedLenUIntMember
// (translate-ctf-ir-to-json.cpp, ~lines 681-704).
func fixedUnsignedIntMember(name string, width int, role string, prefDispBase int) map[string]interface{} {
	fc := map[string]interface{}{
		"type":      "fixed-length-unsigned-integer",
		"length":    width,
		"alignment": width,
		"roles":     []string{role},
	}
	if prefDispBase != 0 && prefDispBase != 10 {
		fc["preferred-display-base"] = prefDispBase
	}
	return memberJSON(name, fc)
}

func memberJSON(name string, fc map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"field-class": fc,
	}
}

func eventRecordClassFragment(sc *ctfir.StreamClass, ec *ctfir.EventClass) (map[string]interface{}, error) {
	m := map[string]interface{}{
		"type":                  "event-record-class",
		"id":                    ec.ID,
		"data-stream-class-id": sc.ID,
	}
	if ec.Name != "" {
		m["name"] = ec.Name
	}
	if ec.LogLevel != "" {
		m["attributes"] = map[string]interface{}{
			"bt-ns": map[string]interface{}{
				"log-level": ec.LogLevel,
			},
		}
	}
	if ec.SpecificContext != nil {
		fcJSON, err := fieldClassJSON(ec.SpecificContext)
		if err != nil {
			return nil, err
		}
		m["specific-context-field-class"] = fcJSON
	}
	if ec.Payload != nil {
		fcJSON, err := fieldClassJSON(ec.Payload)
		if err != nil {
			return nil, err
		}
		m["payload-field-class"] = fcJSON
	}
	return m, nil
}

// fieldClassJSON renders one field class to its CTF 2 JSON
// representation, recursing into composite classes, and tags
// translator-synthesized hidden members with is-key-only (spec.md
// §4.2 "CTF 2").
func fieldClassJSON(fc ctfir.FieldClass) (map[string]interface{}, error) {
	m, err := fieldClassJSONUntagged(fc)
	if err != nil {
		return nil, err
	}
	addKeyOnlyAttr(m, fc.Common())
	return m, nil
}

func fieldClassJSONUntagged(fc ctfir.FieldClass) (map[string]interface{}, error) {
	switch f := fc.(type) {
	case *ctfir.BoolFieldClass:
		return map[string]interface{}{
			"type":      "fixed-length-boolean",
			"length":    8,
			"alignment": f.Alignment,
		}, nil

	case *ctfir.BitArrayFieldClass:
		return map[string]interface{}{
			"type":      "fixed-length-bit-array",
			"length":    f.Width,
			"alignment": f.Alignment,
		}, nil

	case *ctfir.IntFieldClass:
		typeName := "fixed-length-unsigned-integer"
		if f.Signed {
			typeName = "fixed-length-signed-integer"
		}
		m := map[string]interface{}{
			"type":      typeName,
			"length":    f.Width,
			"alignment": f.Alignment,
		}
		if f.Base != 0 && f.Base != 10 {
			m["preferred-display-base"] = f.Base
		}
		if len(f.Mappings) > 0 {
			mappings := map[string]interface{}{}
			for _, em := range f.Mappings {
				mappings[em.Label] = [][2]uint64{{em.Start, em.End}}
			}
			m["type"] = typeName + "-mapping-enumeration"
			m["mappings"] = mappings
		}
		return m, nil

	case *ctfir.FloatFieldClass:
		return map[string]interface{}{
			"type":      "fixed-length-floating-point",
			"length":    f.Width,
			"alignment": f.Alignment,
		}, nil

	case *ctfir.StringFieldClass:
		return map[string]interface{}{
			"type": "null-terminated-string",
		}, nil

	case *ctfir.StructFieldClass:
		members := make([]interface{}, 0, len(f.Members))
		for _, m := range f.Members {
			mfc, err := fieldClassJSON(m.FieldClass)
			if err != nil {
				return nil, err
			}
			members = append(members, memberJSON(m.Name, mfc))
		}
		return map[string]interface{}{
			"type":              "structure",
			"member-classes": members,
		}, nil

	case *ctfir.ArrayFieldClass:
		elem, err := fieldClassJSON(f.Element)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"type":                "static-length-array",
			"length":              f.Length,
			"element-field-class": elem,
		}, nil

	case *ctfir.StaticBlobFieldClass:
		return map[string]interface{}{
			"type":   "static-length-blob",
			"length": f.Length,
		}, nil

	case *ctfir.SequenceFieldClass:
		elem, err := fieldClassJSON(f.Element)
		if err != nil {
			return nil, err
		}
		m := map[string]interface{}{
			"type":                "dynamic-length-array",
			"element-field-class": elem,
		}
		addFieldLocation(m, "length-field-location", f.LengthFieldLocation)
		return m, nil

	case *ctfir.DynBlobFieldClass:
		m := map[string]interface{}{
			"type": "dynamic-length-blob",
		}
		addFieldLocation(m, "length-field-location", f.LengthFieldLocation)
		return m, nil

	case *ctfir.OptionFieldClass:
		inner, err := fieldClassJSON(f.Inner)
		if err != nil {
			return nil, err
		}
		m := map[string]interface{}{
			"type":                 "optional",
			"field-class": inner,
		}
		addFieldLocation(m, "selector-field-location", f.SelectorFieldLocation)
		if len(f.Ranges) > 0 {
			ranges := make([][2]int64, 0, len(f.Ranges))
			for _, r := range f.Ranges {
				ranges = append(ranges, [2]int64{r.Start, r.End})
			}
			m["selector-field-ranges"] = ranges
		}
		return m, nil

	case *ctfir.VariantFieldClass:
		options := make([]interface{}, 0, len(f.Options))
		for _, o := range f.Options {
			ofc, err := fieldClassJSON(o.FieldClass)
			if err != nil {
				return nil, err
			}
			options = append(options, map[string]interface{}{
				"name":        o.Name,
				"field-class": ofc,
			})
		}
		m := map[string]interface{}{
			"type":    "variant",
			"options": options,
		}
		addFieldLocation(m, "selector-field-location", f.SelectorFieldLocation)
		return m, nil

	default:
		return nil, fmt.Errorf("jsonfrag: unsupported field class %T", fc)
	}
}

// addFieldLocation sets key to loc's JSON representation. loc is
// always non-nil under CTF 2 (the translator either resolves or
// synthesizes it); a nil loc here means the trace is being rendered
// under a CTF 1 translation by mistake, which is a translator bug, not
// a data error, so it panics rather than emitting malformed JSON.
//
// The is-key-only tag itself is NOT attached here: spec.md §4.2's
// hidden key-only member is a real sibling struct member with its own
// field class, so the tag belongs on that field class's own JSON (see
// addKeyOnlyAttr), not on this dangling location reference. Ground
// truth: uniqueKeyMemberName/jsonStructFcMemberClassesFromFs
// (translate-ctf-ir-to-json.cpp, lines 249-347).
func addFieldLocation(m map[string]interface{}, key string, loc *ctfir.FieldLocation) {
	if loc == nil {
		panic("jsonfrag: nil field location reaching CTF 2 emitter")
	}
	m[key] = map[string]interface{}{
		"origin": loc.Scope.String(),
		"path":   loc.Path,
	}
}

// addKeyOnlyAttr tags m with attrs.bt-ns.is-key-only when common marks
// the field class as a translator-synthesized hidden member (spec.md
// §4.2 "CTF 2"). Ground truth: keyFcAttrs (translate-ctf-ir-to-json.cpp).
func addKeyOnlyAttr(m map[string]interface{}, common *ctfir.FieldClassCommon) {
	if !common.IsKeyOnly {
		return
	}
	attrs, _ := m["attrs"].(map[string]interface{})
	if attrs == nil {
		attrs = map[string]interface{}{}
		m["attrs"] = attrs
	}
	btNs, _ := attrs["bt-ns"].(map[string]interface{})
	if btNs == nil {
		btNs = map[string]interface{}{}
		attrs["bt-ns"] = btNs
	}
	btNs["is-key-only"] = true
}
