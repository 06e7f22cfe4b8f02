// SPDX-License-Identifier: Apache-2.0

package jsonfrag

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	uuid "github.com/satori/go.uuid"

	"github.com/ctf-tools/fs-sink/internal/ctfir"
)

func simpleTrace() *ctfir.Trace {
	return &ctfir.Trace{
		UUID: uuid.NewV4(),
		Name: "mytrace",
		StreamClasses: []*ctfir.StreamClass{
			{
				ID:              1,
				SupportsPackets: true,
				DefaultClockClass: &ctfir.ClockClass{
					Name:      "monotonic",
					HasName:   true,
					Frequency: 1e9,
				},
				EventClasses: []*ctfir.EventClass{
					{
						ID:   0,
						Name: "my_event",
						Payload: &ctfir.StructFieldClass{
							Members: []ctfir.StructMember{
								{Name: "x", FieldClass: &ctfir.IntFieldClass{Width: 32, Base: 10}},
							},
						},
					},
				},
			},
		},
	}
}

// fragments splits a framed byte stream back into its JSON objects, the
// inverse of writeFragment, for assertions.
func fragments(t *testing.T, data []byte) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, part := range bytes.Split(data, []byte{recordSeparator}) {
		part = bytes.TrimSpace(part)
		if len(part) == 0 {
			continue
		}
		var m map[string]interface{}
		assert.NoError(t, json.Unmarshal(part, &m))
		out = append(out, m)
	}
	return out
}

func TestEmitFragmentOrder(t *testing.T) {
	data, err := Emit(simpleTrace())
	assert.NoError(t, err)
	frags := fragments(t, data)

	assert.Equal(t, "preamble", frags[0]["type"])
	assert.Equal(t, "trace-class", frags[1]["type"])
	assert.Equal(t, "clock-class", frags[2]["type"])
	assert.Equal(t, "data-stream-class", frags[3]["type"])
	assert.Equal(t, "event-record-class", frags[4]["type"])
}

func TestEmitPacketContextFixedMembers(t *testing.T) {
	trace := simpleTrace()
	data, err := Emit(trace)
	assert.NoError(t, err)
	frags := fragments(t, data)

	prefix := trace.UUID.String()
	dsc := frags[3]
	pktCtx := dsc["packet-context-field-class"].(map[string]interface{})
	members := pktCtx["member-classes"].([]interface{})
	names := make([]string, 0, len(members))
	roles := make([]string, 0, len(members))
	for _, m := range members {
		member := m.(map[string]interface{})
		names = append(names, member["name"].(string))
		fc := member["field-class"].(map[string]interface{})
		rs := fc["roles"].([]interface{})
		roles = append(roles, rs[0].(string))
	}
	assert.Equal(t, []string{
		prefix + "-packet_size",
		prefix + "-content_size",
		prefix + "-packet_seq_num",
	}, names)
	assert.Equal(t, []string{
		"packet-total-length",
		"packet-content-length",
		"packet-sequence-number",
	}, roles)
}

func TestEmitEventRecordHeaderFixedMembers(t *testing.T) {
	trace := simpleTrace()
	data, err := Emit(trace)
	assert.NoError(t, err)
	frags := fragments(t, data)

	prefix := trace.UUID.String()
	dsc := frags[3]
	hdr := dsc["event-record-header-field-class"].(map[string]interface{})
	members := hdr["member-classes"].([]interface{})
	assert.Len(t, members, 2)
	assert.Equal(t, prefix+"-id", members[0].(map[string]interface{})["name"])
	assert.Equal(t, prefix+"-timestamp", members[1].(map[string]interface{})["name"])
}

func TestEmitPreambleHasUUIDAndAttrs(t *testing.T) {
	trace := simpleTrace()
	data, err := Emit(trace)
	assert.NoError(t, err)
	frags := fragments(t, data)

	preamble := frags[0]
	assert.Equal(t, float64(2), preamble["version"])
	rawUUID := preamble["uuid"].([]interface{})
	assert.Len(t, rawUUID, 16)
	attrs := preamble["attrs"].(map[string]interface{})
	btns := attrs["bt-ns"].(map[string]interface{})
	assert.Equal(t, true, btns["sink.ctf.fs"])
}

func TestEmitTraceClassHasPacketHeaderFieldClass(t *testing.T) {
	data, err := Emit(simpleTrace())
	assert.NoError(t, err)
	frags := fragments(t, data)

	traceCls := frags[1]
	pktHdr := traceCls["packet-header-fc"].(map[string]interface{})
	members := pktHdr["member-classes"].([]interface{})
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.(map[string]interface{})["name"].(string))
	}
	assert.Equal(t, []string{"magic", "uuid", "stream_id", "stream_instance_id"}, names)
}

func TestEmitEventRecordClassLogLevel(t *testing.T) {
	trace := simpleTrace()
	trace.StreamClasses[0].EventClasses[0].LogLevel = "INFO"
	data, err := Emit(trace)
	assert.NoError(t, err)
	frags := fragments(t, data)
	erc := frags[4]
	attrs := erc["attributes"].(map[string]interface{})
	btns := attrs["bt-ns"].(map[string]interface{})
	assert.Equal(t, "INFO", btns["log-level"])
}

func TestFieldClassJSONEnum(t *testing.T) {
	fc := &ctfir.IntFieldClass{
		Width: 8, Base: 10,
		Mappings: []ctfir.EnumMapping{{Label: "ok", Start: 0, End: 0}},
	}
	m, err := fieldClassJSON(fc)
	assert.NoError(t, err)
	assert.Equal(t, "fixed-length-unsigned-integer-mapping-enumeration", m["type"])
}

func TestFieldClassJSONSequenceFieldLocation(t *testing.T) {
	fc := &ctfir.SequenceFieldClass{
		Element: &ctfir.IntFieldClass{Width: 8, Base: 10},
		LengthFieldLocation: &ctfir.FieldLocation{
			Scope: ctfir.ScopeEventRecordPayload,
			Path:  []string{"n"},
		},
	}
	m, err := fieldClassJSON(fc)
	assert.NoError(t, err)
	loc := m["length-field-location"].(map[string]interface{})
	assert.Equal(t, "event-record-payload", loc["origin"])
	assert.Equal(t, []string{"n"}, loc["path"])
}

func TestFieldClassJSONKeyOnlyMemberTagged(t *testing.T) {
	fc := &ctfir.IntFieldClass{
		FieldClassCommon: ctfir.FieldClassCommon{IsKeyOnly: true},
		Width:            32, Base: 10,
	}
	m, err := fieldClassJSON(fc)
	assert.NoError(t, err)
	attrs := m["attrs"].(map[string]interface{})
	btns := attrs["bt-ns"].(map[string]interface{})
	assert.Equal(t, true, btns["is-key-only"])
}

func TestFieldClassJSONSequenceNilLocationPanics(t *testing.T) {
	fc := &ctfir.SequenceFieldClass{Element: &ctfir.IntFieldClass{Width: 8, Base: 10}}
	assert.Panics(t, func() {
		_, _ = fieldClassJSON(fc)
	})
}

func TestEmitUnsupportedFieldClassErrors(t *testing.T) {
	trace := simpleTrace()
	trace.StreamClasses[0].EventClasses[0].Payload = unknownFieldClass{}
	_, err := Emit(trace)
	assert.Error(t, err)
}

type unknownFieldClass struct{}

func (unknownFieldClass) Kind() ctfir.FieldClassKind      { return ctfir.FieldClassBool }
func (unknownFieldClass) Common() *ctfir.FieldClassCommon { return &ctfir.FieldClassCommon{} }
