// SPDX-License-Identifier: Apache-2.0

// Package translate implements C2, the trace-IR to CTF-IR translator
// (spec.md §4.2). It is grounded on the teacher's pubsub key-value
// collections for its event-class translation cache: the same shape
// as PublicationImpl.km.key, but keyed by upstream event-class
// identity instead of a string key, and populated on miss instead of
// pre-populated (spec.md §4.2 "Caching").
package translate

import (
	"github.com/ctf-tools/fs-sink/internal/base"
	"github.com/ctf-tools/fs-sink/internal/ctfir"
	"github.com/ctf-tools/fs-sink/internal/irsrc"
	"github.com/ctf-tools/fs-sink/internal/sinkcfg"

	uuid "github.com/satori/go.uuid"
)

// ClkClsCfg holds the three clock-class translation knobs of spec.md
// §3. OffsetNanosec is folded into the clock's cycle offset using the
// clock's own frequency.
type ClkClsCfg struct {
	OffsetSec              int64
	OffsetNanosec           int64
	ForceOriginIsUnixEpoch bool
}

// Translator translates one upstream trace into a ctfir.Trace,
// memoizing event-class translation across calls so the second and
// later events of the same class are O(1) (spec.md §4.2 "Caching").
type Translator struct {
	log        *base.LogObject
	version    sinkcfg.CTFVersion
	clkCfg     ClkClsCfg
	traceUUID  uuid.UUID

	eventClassCache map[irsrc.EventClass]*ctfir.EventClass
}

// NewTranslator builds a Translator for one trace. traceUUID
// disambiguates synthesized member names (spec.md §3, §4.2).
func NewTranslator(log *base.LogObject, version sinkcfg.CTFVersion, clkCfg ClkClsCfg, traceUUID uuid.UUID) *Translator {
	return &Translator{
		log:             log,
		version:         version,
		clkCfg:          clkCfg,
		traceUUID:       traceUUID,
		eventClassCache: make(map[irsrc.EventClass]*ctfir.EventClass),
	}
}

// Translate converts the upstream trace, including every stream class
// and its event classes, into a ctfir.Trace.
func (t *Translator) Translate(tr irsrc.Trace) (*ctfir.Trace, error) {
	name, _ := tr.Name()
	out := &ctfir.Trace{
		UUID:          t.traceUUID,
		Name:          name,
		Environment:   translateEnvironment(tr.Environment()),
		StreamClasses: nil,
	}
	for _, sc := range tr.StreamClasses() {
		translated, err := t.translateStreamClass(sc)
		if err != nil {
			return nil, err
		}
		out.StreamClasses = append(out.StreamClasses, translated)
	}
	return out, nil
}

func translateEnvironment(env map[string]irsrc.EnvValue) map[string]ctfir.EnvValue {
	if env == nil {
		return nil
	}
	out := make(map[string]ctfir.EnvValue, len(env))
	for k, v := range env {
		out[k] = ctfir.EnvValue{IsString: v.IsString, Str: v.Str, Int: v.Int}
	}
	return out
}

func (t *Translator) translateStreamClass(sc irsrc.StreamClass) (*ctfir.StreamClass, error) {
	name, _ := sc.Name()
	out := &ctfir.StreamClass{
		ID:                       sc.ID(),
		Name:                     name,
		SupportsPackets:          sc.SupportsPackets(),
		PacketsHaveBeginningTS:   sc.PacketsHaveBeginningDefaultClockSnapshot(),
		PacketsHaveEndTS:         sc.PacketsHaveEndDefaultClockSnapshot(),
		SupportsDiscardedEvents:  sc.SupportsDiscardedEvents(),
		DiscardedEventsHaveTS:    sc.DiscardedEventsHaveDefaultClockSnapshots(),
		SupportsDiscardedPackets: sc.SupportsDiscardedPackets(),
		DiscardedPacketsHaveTS:   sc.DiscardedPacketsHaveDefaultClockSnapshots(),
	}

	if cc, ok := sc.DefaultClockClass(); ok {
		out.DefaultClockClass = t.translateClockClass(cc)
	}

	idx := newPathIndex()

	if fc, ok := sc.PacketContextFieldClass(); ok {
		translated, pending, err := t.translateFieldClass(fc, idx, ctfir.ScopePacketContext, nil)
		if err != nil {
			return nil, err
		}
		if err := requireNoPendingMembers("translateStreamClass", "packet context field class", pending); err != nil {
			return nil, err
		}
		out.PacketContext = translated
	}
	if fc, ok := sc.EventCommonContextFieldClass(); ok {
		translated, pending, err := t.translateFieldClass(fc, idx, ctfir.ScopeEventRecordCommonContext, nil)
		if err != nil {
			return nil, err
		}
		if err := requireNoPendingMembers("translateStreamClass", "event common context field class", pending); err != nil {
			return nil, err
		}
		out.EventCommonContext = translated
	}

	for _, ec := range sc.EventClasses() {
		translated, err := t.translateEventClass(ec)
		if err != nil {
			return nil, err
		}
		out.EventClasses = append(out.EventClasses, translated)
	}

	return out, nil
}

func (t *Translator) translateEventClass(ec irsrc.EventClass) (*ctfir.EventClass, error) {
	if cached, ok := t.eventClassCache[ec]; ok {
		t.log.Tracef("translateEventClass: cache hit for event class id %d", ec.ID())
		return cached, nil
	}

	name, _ := ec.Name()
	out := &ctfir.EventClass{
		ID:   ec.ID(),
		Name: name,
	}
	if level, ok := ec.LogLevel(); ok {
		out.LogLevel = canonicalLogLevel(level)
	}

	idx := newPathIndex()
	if fc, ok := ec.SpecificContextFieldClass(); ok {
		translated, pending, err := t.translateFieldClass(fc, idx, ctfir.ScopeEventRecordSpecificContext, nil)
		if err != nil {
			return nil, err
		}
		if err := requireNoPendingMembers("translateEventClass", "specific context field class", pending); err != nil {
			return nil, err
		}
		out.SpecificContext = translated
	}
	idx = newPathIndex()
	if fc, ok := ec.PayloadFieldClass(); ok {
		translated, pending, err := t.translateFieldClass(fc, idx, ctfir.ScopeEventRecordPayload, nil)
		if err != nil {
			return nil, err
		}
		if err := requireNoPendingMembers("translateEventClass", "payload field class", pending); err != nil {
			return nil, err
		}
		out.Payload = translated
	}

	t.eventClassCache[ec] = out
	return out, nil
}

func (t *Translator) translateClockClass(cc irsrc.ClockClass) *ctfir.ClockClass {
	out := &ctfir.ClockClass{
		Frequency: cc.Frequency(),
	}

	offsetSeconds := cc.OffsetSeconds() + t.clkCfg.OffsetSec
	offsetCycles := cc.OffsetCycles()
	if t.clkCfg.OffsetNanosec != 0 && out.Frequency != 0 {
		offsetCycles += uint64(t.clkCfg.OffsetNanosec) * out.Frequency / 1e9
	}
	out.OffsetSeconds = offsetSeconds
	out.OffsetCycles = offsetCycles

	if t.clkCfg.ForceOriginIsUnixEpoch || cc.OriginIsUnixEpoch() {
		out.OriginIsUnixEpoch = true
		return out
	}
	if name, ok := cc.Name(); ok {
		out.Name = name
		out.HasName = true
	} else if uidStr, ok := cc.UID(); ok {
		out.UID = uidStr
		out.HasName = true
	}
	return out
}

// canonicalLogLevel maps one of the 15 recognized log-level values to
// its canonical string tag (spec.md §4.4).
func canonicalLogLevel(level int) string {
	if tag, ok := logLevelTags[level]; ok {
		return tag
	}
	return ""
}

// logLevelTags is the full 15-entry recognized log-level table,
// matching LTTng-UST's log-level numbering, recovered from
// original_source/ (translate-ctf-ir-to-json.cpp's log-level table).
var logLevelTags = map[int]string{
	0:  "EMERG",
	1:  "ALERT",
	2:  "CRIT",
	3:  "ERR",
	4:  "WARNING",
	5:  "NOTICE",
	6:  "INFO",
	7:  "DEBUG_SYSTEM",
	8:  "DEBUG_PROGRAM",
	9:  "DEBUG_PROCESS",
	10: "DEBUG_MODULE",
	11: "DEBUG_UNIT",
	12: "DEBUG_FUNCTION",
	13: "DEBUG_LINE",
	14: "DEBUG",
}
