// SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ctf-tools/fs-sink/internal/irsrc"
)

func mustEnvelope(t *testing.T, line string) *rawEnvelope {
	t.Helper()
	env, err := parseLine([]byte(line))
	assert.NoError(t, err)
	return env
}

func TestDriverTraceLifecycle(t *testing.T) {
	d := newDriver()

	traceLine := `{"kind":"trace","trace_id":"t1","stream_classes":[{"id":0,"event_classes":[{"id":0,"name":"ev"}]}]}`
	msg, err := d.process(mustEnvelope(t, traceLine))
	assert.NoError(t, err)
	assert.Nil(t, msg)
	assert.Contains(t, d.traces, "t1")

	beginLine := `{"kind":"stream-beginning","trace_id":"t1","stream_id":"s1","stream_class_id":0}`
	msg, err = d.process(mustEnvelope(t, beginLine))
	assert.NoError(t, err)
	assert.Equal(t, irsrc.MessageStreamBeginning, msg.Kind())
	assert.Contains(t, d.streams, "s1")

	eventLine := `{"kind":"event","stream_id":"s1","event_class_id":0}`
	msg, err = d.process(mustEnvelope(t, eventLine))
	assert.NoError(t, err)
	assert.Equal(t, irsrc.MessageEvent, msg.Kind())
	assert.Equal(t, uint64(0), msg.(irsrc.EventMessage).EventClass().ID())

	endLine := `{"kind":"stream-end","stream_id":"s1"}`
	msg, err = d.process(mustEnvelope(t, endLine))
	assert.NoError(t, err)
	assert.Equal(t, irsrc.MessageStreamEnd, msg.Kind())
	assert.NotContains(t, d.streams, "s1")

	destroyed := false
	d.traces["t1"].OnDestroy(func() { destroyed = true })

	destroyLine := `{"kind":"trace-destroy","trace_id":"t1"}`
	_, err = d.process(mustEnvelope(t, destroyLine))
	assert.NoError(t, err)
	assert.True(t, destroyed)
	assert.NotContains(t, d.traces, "t1")
}

func TestDriverRejectsEventForUnknownStream(t *testing.T) {
	d := newDriver()
	_, err := d.process(mustEnvelope(t, `{"kind":"event","stream_id":"missing","event_class_id":0}`))
	assert.Error(t, err)
}

func TestDriverRejectsDuplicateTraceDeclaration(t *testing.T) {
	d := newDriver()
	line := `{"kind":"trace","trace_id":"t1"}`
	_, err := d.process(mustEnvelope(t, line))
	assert.NoError(t, err)
	_, err = d.process(mustEnvelope(t, line))
	assert.Error(t, err)
}

func TestDriverDiscardedEventsRange(t *testing.T) {
	d := newDriver()
	_, err := d.process(mustEnvelope(t, `{"kind":"trace","trace_id":"t1","stream_classes":[{"id":0}]}`))
	assert.NoError(t, err)
	_, err = d.process(mustEnvelope(t, `{"kind":"stream-beginning","trace_id":"t1","stream_id":"s1","stream_class_id":0}`))
	assert.NoError(t, err)

	msg, err := d.process(mustEnvelope(t, `{"kind":"discarded-events","stream_id":"s1","count":3}`))
	assert.NoError(t, err)
	dm := msg.(irsrc.DiscardedEventsMessage)
	count, ok := dm.Count()
	assert.True(t, ok)
	assert.Equal(t, uint64(3), count)
}
