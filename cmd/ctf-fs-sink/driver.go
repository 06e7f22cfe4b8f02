// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/ctf-tools/fs-sink/internal/irsrc"
)

// driver holds the registries that turn a stream of NDJSON records
// into the live irsrc.Trace/irsrc.Stream graph the sink consumes.
// This is the plugin-host stand-in spec.md §1 places out of scope.
type driver struct {
	traces  map[string]*jsonTrace
	streams map[string]*jsonStream
}

func newDriver() *driver {
	return &driver{
		traces:  make(map[string]*jsonTrace),
		streams: make(map[string]*jsonStream),
	}
}

// process turns one decoded record into a dispatchable irsrc.Message,
// or nil when the record only mutates the driver's own registries
// ("trace" schema declarations, "trace-destroy" notifications).
func (d *driver) process(env *rawEnvelope) (irsrc.Message, error) {
	switch env.Kind {
	case "trace":
		return nil, d.declareTrace(env)
	case "trace-destroy":
		return nil, d.destroyTrace(env)
	case "stream-beginning":
		return d.streamBeginning(env)
	case "stream-end":
		return d.streamEnd(env)
	case "packet-beginning":
		return d.packetBeginning(env)
	case "packet-end":
		return d.packetEnd(env)
	case "event":
		return d.event(env)
	case "discarded-events":
		return d.discardedRange(env, irsrc.MessageDiscardedEvents)
	case "discarded-packets":
		return d.discardedRange(env, irsrc.MessageDiscardedPackets)
	case "iterator-inactivity":
		return &iteratorInactivityMsg{}, nil
	default:
		return nil, fmt.Errorf("driver: unrecognized record kind %q", env.Kind)
	}
}

func (d *driver) declareTrace(env *rawEnvelope) error {
	if _, exists := d.traces[env.TraceID]; exists {
		return fmt.Errorf("driver: trace %q declared twice", env.TraceID)
	}
	tr := &jsonTrace{}
	if env.Name != nil {
		tr.name, tr.hasName = *env.Name, true
	}
	if len(env.Environment) > 0 {
		tr.environment = make(map[string]irsrc.EnvValue, len(env.Environment))
		for k, v := range env.Environment {
			if v.Str != nil {
				tr.environment[k] = irsrc.EnvValue{IsString: true, Str: *v.Str}
			} else if v.Int != nil {
				tr.environment[k] = irsrc.EnvValue{IsString: false, Int: *v.Int}
			}
		}
	}
	for _, rsc := range env.StreamClasses {
		sc, err := buildStreamClass(rsc)
		if err != nil {
			return err
		}
		tr.streamClasses = append(tr.streamClasses, sc)
	}
	d.traces[env.TraceID] = tr
	return nil
}

func (d *driver) destroyTrace(env *rawEnvelope) error {
	tr, ok := d.traces[env.TraceID]
	if !ok {
		return fmt.Errorf("driver: trace-destroy for unknown trace %q", env.TraceID)
	}
	tr.fireDestroy()
	delete(d.traces, env.TraceID)
	return nil
}

func (d *driver) lookupStreamClass(tr *jsonTrace, id uint64) (*jsonStreamClass, error) {
	for _, sc := range tr.streamClasses {
		if jsc, ok := sc.(*jsonStreamClass); ok && jsc.id == id {
			return jsc, nil
		}
	}
	return nil, fmt.Errorf("driver: unknown stream class id %d", id)
}

func (d *driver) streamBeginning(env *rawEnvelope) (irsrc.Message, error) {
	tr, ok := d.traces[env.TraceID]
	if !ok {
		return nil, fmt.Errorf("driver: stream-beginning for unknown trace %q", env.TraceID)
	}
	if _, exists := d.streams[env.StreamID]; exists {
		return nil, fmt.Errorf("driver: stream %q already began", env.StreamID)
	}
	sc, err := d.lookupStreamClass(tr, env.StreamClassID)
	if err != nil {
		return nil, err
	}
	st := &jsonStream{id: uint64(len(d.streams)), class: sc, trace: tr}
	d.streams[env.StreamID] = st
	return &streamBeginningMsg{stream: st}, nil
}

func (d *driver) lookupStream(id string) (*jsonStream, error) {
	st, ok := d.streams[id]
	if !ok {
		return nil, fmt.Errorf("driver: message for unknown stream %q", id)
	}
	return st, nil
}

func (d *driver) streamEnd(env *rawEnvelope) (irsrc.Message, error) {
	st, err := d.lookupStream(env.StreamID)
	if err != nil {
		return nil, err
	}
	delete(d.streams, env.StreamID)
	return &streamEndMsg{stream: st}, nil
}

func (d *driver) packetBeginning(env *rawEnvelope) (irsrc.Message, error) {
	st, err := d.lookupStream(env.StreamID)
	if err != nil {
		return nil, err
	}
	m := &packetBeginningMsg{stream: st}
	if env.ClockSnapshot != nil {
		m.cs, m.hasCS = *env.ClockSnapshot, true
	}
	return m, nil
}

func (d *driver) packetEnd(env *rawEnvelope) (irsrc.Message, error) {
	st, err := d.lookupStream(env.StreamID)
	if err != nil {
		return nil, err
	}
	m := &packetEndMsg{stream: st}
	if env.ClockSnapshot != nil {
		m.cs, m.hasCS = *env.ClockSnapshot, true
	}
	return m, nil
}

func (d *driver) event(env *rawEnvelope) (irsrc.Message, error) {
	st, err := d.lookupStream(env.StreamID)
	if err != nil {
		return nil, err
	}
	jsc, ok := st.class.(*jsonStreamClass)
	if !ok {
		return nil, fmt.Errorf("driver: stream %q has no decoded stream class", env.StreamID)
	}
	ec, ok := jsc.eventClassByID[env.EventClassID]
	if !ok {
		return nil, fmt.Errorf("driver: unknown event class id %d on stream class %d", env.EventClassID, jsc.id)
	}
	m := &eventMsg{
		stream:          st,
		eventClass:      ec,
		commonContext:   env.CommonContext,
		specificContext: env.SpecificContext,
		payload:         env.Payload,
	}
	if env.ClockSnapshot != nil {
		m.cs, m.hasCS = *env.ClockSnapshot, true
	}
	return m, nil
}

func (d *driver) discardedRange(env *rawEnvelope, kind irsrc.MessageKind) (irsrc.Message, error) {
	st, err := d.lookupStream(env.StreamID)
	if err != nil {
		return nil, err
	}
	m := &discardedRangeMsg{kind: kind, stream: st}
	if env.BeginningCS != nil {
		m.beginCS, m.hasBegin = *env.BeginningCS, true
	}
	if env.EndCS != nil {
		m.endCS, m.hasEnd = *env.EndCS, true
	}
	if env.Count != nil {
		m.count, m.hasCount = *env.Count, true
	}
	return m, nil
}
