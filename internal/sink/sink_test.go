// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/ctf-tools/fs-sink/internal/base"
	"github.com/ctf-tools/fs-sink/internal/irsrc"
	"github.com/ctf-tools/fs-sink/internal/sinkcfg"
	"github.com/ctf-tools/fs-sink/internal/translate"
)

// Minimal irsrc fakes. Identity for Trace/Stream/EventClass is by
// pointer, matching the "upstream handle equality" contract of
// irsrc.EventClass/irsrc.Trace (internal/irsrc/contracts.go).

type fakeEventClass struct {
	id   uint64
	name string
}

func (e *fakeEventClass) ID() uint64                                        { return e.id }
func (e *fakeEventClass) Name() (string, bool)                              { return e.name, e.name != "" }
func (e *fakeEventClass) LogLevel() (int, bool)                             { return 0, false }
func (e *fakeEventClass) SpecificContextFieldClass() (irsrc.FieldClass, bool) { return nil, false }
func (e *fakeEventClass) PayloadFieldClass() (irsrc.FieldClass, bool)       { return nil, false }

type fakeStreamClass struct {
	id           uint64
	eventClasses []irsrc.EventClass

	supportsPackets          bool
	packetsHaveBeginningTS   bool
	packetsHaveEndTS         bool
	supportsDiscardedEvents  bool
	discardedEventsHaveTS    bool
	supportsDiscardedPackets bool
	discardedPacketsHaveTS   bool
}

func (s *fakeStreamClass) ID() uint64                       { return s.id }
func (s *fakeStreamClass) Name() (string, bool)             { return "", false }
func (s *fakeStreamClass) EventClasses() []irsrc.EventClass { return s.eventClasses }
func (s *fakeStreamClass) SupportsPackets() bool            { return s.supportsPackets }
func (s *fakeStreamClass) PacketsHaveBeginningDefaultClockSnapshot() bool {
	return s.packetsHaveBeginningTS
}
func (s *fakeStreamClass) PacketsHaveEndDefaultClockSnapshot() bool { return s.packetsHaveEndTS }
func (s *fakeStreamClass) SupportsDiscardedEvents() bool            { return s.supportsDiscardedEvents }
func (s *fakeStreamClass) DiscardedEventsHaveDefaultClockSnapshots() bool {
	return s.discardedEventsHaveTS
}
func (s *fakeStreamClass) SupportsDiscardedPackets() bool { return s.supportsDiscardedPackets }
func (s *fakeStreamClass) DiscardedPacketsHaveDefaultClockSnapshots() bool {
	return s.discardedPacketsHaveTS
}
func (s *fakeStreamClass) DefaultClockClass() (irsrc.ClockClass, bool)         { return nil, false }
func (s *fakeStreamClass) EventCommonContextFieldClass() (irsrc.FieldClass, bool) { return nil, false }
func (s *fakeStreamClass) PacketContextFieldClass() (irsrc.FieldClass, bool)   { return nil, false }

type fakeTrace struct {
	streamClasses []irsrc.StreamClass
	env           map[string]irsrc.EnvValue
	destroyFns    []func()
}

func (t *fakeTrace) Name() (string, bool)                  { return "mytrace", true }
func (t *fakeTrace) Environment() map[string]irsrc.EnvValue { return t.env }
func (t *fakeTrace) StreamClasses() []irsrc.StreamClass     { return t.streamClasses }
func (t *fakeTrace) OnDestroy(f func())                     { t.destroyFns = append(t.destroyFns, f) }
func (t *fakeTrace) fireDestroy() {
	for _, f := range t.destroyFns {
		f()
	}
}

type fakeStream struct {
	id    uint64
	class irsrc.StreamClass
	trace irsrc.Trace
}

func (s *fakeStream) ID() uint64                 { return s.id }
func (s *fakeStream) Class() irsrc.StreamClass   { return s.class }
func (s *fakeStream) Trace() irsrc.Trace         { return s.trace }

type streamBeginMsg struct{ stream irsrc.Stream }

func (m *streamBeginMsg) Kind() irsrc.MessageKind { return irsrc.MessageStreamBeginning }
func (m *streamBeginMsg) Stream() irsrc.Stream    { return m.stream }

type streamEndMsg struct{ stream irsrc.Stream }

func (m *streamEndMsg) Kind() irsrc.MessageKind { return irsrc.MessageStreamEnd }
func (m *streamEndMsg) Stream() irsrc.Stream    { return m.stream }

type evMsg struct {
	stream irsrc.Stream
	ec     irsrc.EventClass
	cs     uint64
	hasCS  bool
}

func (m *evMsg) Kind() irsrc.MessageKind      { return irsrc.MessageEvent }
func (m *evMsg) Stream() irsrc.Stream         { return m.stream }
func (m *evMsg) EventClass() irsrc.EventClass { return m.ec }
func (m *evMsg) ClockSnapshot() (uint64, bool) { return m.cs, m.hasCS }
func (m *evMsg) CommonContext() interface{}    { return nil }
func (m *evMsg) SpecificContext() interface{}  { return nil }
func (m *evMsg) Payload() interface{}          { return nil }

func newTestSink(t *testing.T) (*Sink, string) {
	t.Helper()
	dir := t.TempDir()
	log := base.NewSourceLogObject(logrus.StandardLogger(), "test", 1)
	cfg := &sinkcfg.Config{Path: dir, CTFVersion: sinkcfg.CTFVersion2}
	return New(log, cfg, translate.ClkClsCfg{}), dir
}

func TestConsumeHappyPathWritesMetadataAndStreamFile(t *testing.T) {
	s, dir := newTestSink(t)

	sc := &fakeStreamClass{id: 0, eventClasses: []irsrc.EventClass{&fakeEventClass{id: 0, name: "ev"}}}
	tr := &fakeTrace{streamClasses: []irsrc.StreamClass{sc}}
	st := &fakeStream{id: 0, class: sc, trace: tr}

	status, err := s.Consume([]irsrc.Message{
		&streamBeginMsg{stream: st},
		&evMsg{stream: st, ec: sc.eventClasses[0]},
		&streamEndMsg{stream: st},
	})
	assert.NoError(t, err)
	assert.Equal(t, StatusOK, status)

	tr.fireDestroy()

	entries, err := os.ReadDir(filepath.Join(dir, "mytrace"))
	assert.NoError(t, err)
	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name()] = true
	}
	assert.True(t, names["metadata"])
	assert.True(t, names["stream"])
}

func TestConsumeRejectsEventWithNoStreamBeginning(t *testing.T) {
	s, _ := newTestSink(t)
	sc := &fakeStreamClass{id: 0, eventClasses: []irsrc.EventClass{&fakeEventClass{id: 0}}}
	tr := &fakeTrace{streamClasses: []irsrc.StreamClass{sc}}
	st := &fakeStream{id: 0, class: sc, trace: tr}

	status, err := s.Consume([]irsrc.Message{&evMsg{stream: st, ec: sc.eventClasses[0]}})
	assert.Error(t, err)
	assert.Equal(t, StatusError, status)
}

func TestConsumeRejectsDiscardedEventsWithoutPackets(t *testing.T) {
	s, _ := newTestSink(t)
	sc := &fakeStreamClass{id: 0, supportsDiscardedEvents: true, supportsPackets: false}
	tr := &fakeTrace{streamClasses: []irsrc.StreamClass{sc}}
	st := &fakeStream{id: 0, class: sc, trace: tr}

	status, err := s.Consume([]irsrc.Message{&streamBeginMsg{stream: st}})
	assert.Error(t, err)
	assert.Equal(t, StatusError, status)
}

func TestConsumeHaltsBatchOnFirstError(t *testing.T) {
	s, _ := newTestSink(t)
	sc := &fakeStreamClass{id: 0, eventClasses: []irsrc.EventClass{&fakeEventClass{id: 0}}}
	tr := &fakeTrace{streamClasses: []irsrc.StreamClass{sc}}
	st := &fakeStream{id: 0, class: sc, trace: tr}

	msgs := []irsrc.Message{
		&evMsg{stream: st, ec: sc.eventClasses[0]}, // fails: no stream-beginning yet
		&streamBeginMsg{stream: st},
	}
	status, err := s.Consume(msgs)
	assert.Error(t, err)
	assert.Equal(t, StatusError, status)

	// the second message never ran: a later stream-beginning now succeeds
	status, err = s.Consume([]irsrc.Message{&streamBeginMsg{stream: st}})
	assert.NoError(t, err)
	assert.Equal(t, StatusOK, status)
}
