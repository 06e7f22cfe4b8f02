// SPDX-License-Identifier: Apache-2.0

package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	uuid "github.com/satori/go.uuid"

	"github.com/ctf-tools/fs-sink/internal/base"
	"github.com/ctf-tools/fs-sink/internal/ctfir"
	"github.com/ctf-tools/fs-sink/internal/irsrc"
	"github.com/ctf-tools/fs-sink/internal/sinkcfg"
)

type fakeClockClass struct {
	name, uid         string
	hasName           bool
	freq              uint64
	offsetSec         int64
	offsetCycles      uint64
	originIsUnixEpoch bool
}

func (c *fakeClockClass) Name() (string, bool)    { return c.name, c.hasName && c.name != "" }
func (c *fakeClockClass) UID() (string, bool)     { return c.uid, c.hasName && c.name == "" }
func (c *fakeClockClass) Frequency() uint64       { return c.freq }
func (c *fakeClockClass) OffsetSeconds() int64    { return c.offsetSec }
func (c *fakeClockClass) OffsetCycles() uint64    { return c.offsetCycles }
func (c *fakeClockClass) OriginIsUnixEpoch() bool { return c.originIsUnixEpoch }

type fakeFieldLocation struct{ target irsrc.FieldClass }

func (f fakeFieldLocation) TargetFieldClass() irsrc.FieldClass { return f.target }

type fakeIntFC struct {
	width  uint64
	signed bool
	base   int
}

func (f *fakeIntFC) Kind() irsrc.FieldClassKind             { return irsrc.FieldClassInt }
func (f *fakeIntFC) Alignment() uint64                      { return 8 }
func (f *fakeIntFC) UserAttributes() map[string]interface{} { return nil }
func (f *fakeIntFC) Signed() bool                           { return f.signed }
func (f *fakeIntFC) Width() uint64                          { return f.width }
func (f *fakeIntFC) Base() int                              { return f.base }
func (f *fakeIntFC) EnumMappings() []irsrc.EnumMapping       { return nil }

type fakeSequenceFC struct {
	element        irsrc.FieldClass
	loc            irsrc.FieldLocation
	lengthIsBefore bool
}

func (f *fakeSequenceFC) Kind() irsrc.FieldClassKind             { return irsrc.FieldClassSequence }
func (f *fakeSequenceFC) Alignment() uint64                      { return 0 }
func (f *fakeSequenceFC) UserAttributes() map[string]interface{} { return nil }
func (f *fakeSequenceFC) ElementFieldClass() irsrc.FieldClass    { return f.element }
func (f *fakeSequenceFC) LengthFieldLocation() irsrc.FieldLocation { return f.loc }
func (f *fakeSequenceFC) LengthIsBefore() bool                     { return f.lengthIsBefore }

type fakeStructFC struct {
	members []irsrc.StructMember
}

func (f *fakeStructFC) Kind() irsrc.FieldClassKind             { return irsrc.FieldClassStruct }
func (f *fakeStructFC) Alignment() uint64                      { return 0 }
func (f *fakeStructFC) UserAttributes() map[string]interface{} { return nil }
func (f *fakeStructFC) Members() []irsrc.StructMember          { return f.members }

type fakeEventClass struct {
	id       uint64
	name     string
	level    int
	hasLevel bool
	payload  irsrc.FieldClass
}

func (e *fakeEventClass) ID() uint64                                        { return e.id }
func (e *fakeEventClass) Name() (string, bool)                              { return e.name, e.name != "" }
func (e *fakeEventClass) LogLevel() (int, bool)                             { return e.level, e.hasLevel }
func (e *fakeEventClass) SpecificContextFieldClass() (irsrc.FieldClass, bool) { return nil, false }
func (e *fakeEventClass) PayloadFieldClass() (irsrc.FieldClass, bool) {
	return e.payload, e.payload != nil
}

type fakeStreamClass struct {
	id           uint64
	eventClasses []irsrc.EventClass
	clock        irsrc.ClockClass
}

func (s *fakeStreamClass) ID() uint64                       { return s.id }
func (s *fakeStreamClass) Name() (string, bool)             { return "", false }
func (s *fakeStreamClass) EventClasses() []irsrc.EventClass { return s.eventClasses }
func (s *fakeStreamClass) SupportsPackets() bool            { return true }
func (s *fakeStreamClass) PacketsHaveBeginningDefaultClockSnapshot() bool { return false }
func (s *fakeStreamClass) PacketsHaveEndDefaultClockSnapshot() bool       { return false }
func (s *fakeStreamClass) SupportsDiscardedEvents() bool                  { return false }
func (s *fakeStreamClass) DiscardedEventsHaveDefaultClockSnapshots() bool  { return false }
func (s *fakeStreamClass) SupportsDiscardedPackets() bool                 { return false }
func (s *fakeStreamClass) DiscardedPacketsHaveDefaultClockSnapshots() bool { return false }
func (s *fakeStreamClass) DefaultClockClass() (irsrc.ClockClass, bool)     { return s.clock, s.clock != nil }
func (s *fakeStreamClass) EventCommonContextFieldClass() (irsrc.FieldClass, bool) {
	return nil, false
}
func (s *fakeStreamClass) PacketContextFieldClass() (irsrc.FieldClass, bool) { return nil, false }

type fakeTrace struct {
	streamClasses []irsrc.StreamClass
}

func (t *fakeTrace) Name() (string, bool)                   { return "", false }
func (t *fakeTrace) Environment() map[string]irsrc.EnvValue  { return nil }
func (t *fakeTrace) StreamClasses() []irsrc.StreamClass      { return t.streamClasses }
func (t *fakeTrace) OnDestroy(func())                        {}

func newTestTranslator(t *testing.T, version sinkcfg.CTFVersion, clkCfg ClkClsCfg) *Translator {
	t.Helper()
	log := base.NewSourceLogObject(nil, "test", 1)
	return NewTranslator(log, version, clkCfg, uuid.NewV4())
}

func TestTranslateClockClassOffsetFolding(t *testing.T) {
	tr := newTestTranslator(t, sinkcfg.CTFVersion2, ClkClsCfg{OffsetSec: 5, OffsetNanosec: 2_000_000_000})
	cc := &fakeClockClass{name: "mono", hasName: true, freq: 1_000_000_000, offsetSec: 10}

	out := tr.translateClockClass(cc)
	assert.Equal(t, int64(15), out.OffsetSeconds)
	assert.Equal(t, uint64(2_000_000_000), out.OffsetCycles)
	assert.Equal(t, "mono", out.Name)
}

func TestTranslateClockClassForceUnixEpoch(t *testing.T) {
	tr := newTestTranslator(t, sinkcfg.CTFVersion2, ClkClsCfg{ForceOriginIsUnixEpoch: true})
	cc := &fakeClockClass{name: "mono", hasName: true, freq: 1}

	out := tr.translateClockClass(cc)
	assert.True(t, out.OriginIsUnixEpoch)
	assert.Equal(t, "", out.Name)
}

func TestCanonicalLogLevel(t *testing.T) {
	assert.Equal(t, "INFO", canonicalLogLevel(6))
	assert.Equal(t, "", canonicalLogLevel(999))
}

func TestTranslateEventClassCaching(t *testing.T) {
	tr := newTestTranslator(t, sinkcfg.CTFVersion2, ClkClsCfg{})
	ec := &fakeEventClass{id: 1, name: "ev"}

	first, err := tr.translateEventClass(ec)
	assert.NoError(t, err)
	second, err := tr.translateEventClass(ec)
	assert.NoError(t, err)
	assert.Same(t, first, second)
}

func TestTranslateSequenceSynthesizesLocationUnderCTF2(t *testing.T) {
	tr := newTestTranslator(t, sinkcfg.CTFVersion2, ClkClsCfg{})
	seq := &fakeSequenceFC{element: &fakeIntFC{width: 8, base: 10}}

	out, pending, err := tr.translateFieldClass(seq, newPathIndex(), ctfir.ScopeEventRecordPayload, nil)
	assert.NoError(t, err)
	sfc := out.(*ctfir.SequenceFieldClass)
	assert.NotNil(t, sfc.LengthFieldLocation)
	assert.True(t, sfc.LengthFieldLocation.Synthesized)

	assert.Len(t, pending, 1)
	assert.Equal(t, []string{pending[0].Name}, sfc.LengthFieldLocation.Path)
	assert.Equal(t, tr.traceUUID.String()+"-root-len", pending[0].Name)
	assert.True(t, pending[0].FieldClass.Common().IsKeyOnly)
}

func TestTranslateSequenceNilLocationUnderCTF1IsNil(t *testing.T) {
	tr := newTestTranslator(t, sinkcfg.CTFVersion1, ClkClsCfg{})
	seq := &fakeSequenceFC{element: &fakeIntFC{width: 8, base: 10}}

	out, pending, err := tr.translateFieldClass(seq, newPathIndex(), ctfir.ScopeEventRecordPayload, nil)
	assert.NoError(t, err)
	sfc := out.(*ctfir.SequenceFieldClass)
	assert.Nil(t, sfc.LengthFieldLocation)
	assert.Empty(t, pending)
}

func TestTranslateSequenceResolvesSiblingLocationUnderCTF1(t *testing.T) {
	tr := newTestTranslator(t, sinkcfg.CTFVersion1, ClkClsCfg{})
	lenField := &fakeIntFC{width: 32, base: 10}
	seq := &fakeSequenceFC{element: &fakeIntFC{width: 8, base: 10}, loc: fakeFieldLocation{target: lenField}}
	st := &fakeStructFC{members: []irsrc.StructMember{
		{Name: "n", FieldClass: lenField},
		{Name: "data", FieldClass: seq},
	}}

	out, pending, err := tr.translateFieldClass(st, newPathIndex(), ctfir.ScopeEventRecordPayload, nil)
	assert.NoError(t, err)
	assert.Empty(t, pending)
	outSt := out.(*ctfir.StructFieldClass)
	dataFC := outSt.Members[1].FieldClass.(*ctfir.SequenceFieldClass)
	assert.NotNil(t, dataFC.LengthFieldLocation)
	assert.Equal(t, []string{"n"}, dataFC.LengthFieldLocation.Path)
	assert.False(t, dataFC.LengthFieldLocation.Synthesized)
}

func TestTranslateSequenceUnresolvedSiblingUnderCTF1Errors(t *testing.T) {
	tr := newTestTranslator(t, sinkcfg.CTFVersion1, ClkClsCfg{})
	lenField := &fakeIntFC{width: 32, base: 10}
	seq := &fakeSequenceFC{element: &fakeIntFC{width: 8, base: 10}, loc: fakeFieldLocation{target: lenField}}

	_, _, err := tr.translateFieldClass(seq, newPathIndex(), ctfir.ScopeEventRecordPayload, nil)
	assert.Error(t, err)
}

func TestTranslateStreamClassPropagatesClockClass(t *testing.T) {
	tr := newTestTranslator(t, sinkcfg.CTFVersion2, ClkClsCfg{})
	cc := &fakeClockClass{name: "mono", hasName: true, freq: 1}
	sc := &fakeStreamClass{id: 5, clock: cc}

	out, err := tr.translateStreamClass(sc)
	assert.NoError(t, err)
	assert.NotNil(t, out.DefaultClockClass)
	assert.Equal(t, "mono", out.DefaultClockClass.Name)
}

func TestTranslateRejectsUnknownFieldClassKind(t *testing.T) {
	tr := newTestTranslator(t, sinkcfg.CTFVersion2, ClkClsCfg{})
	_, _, err := tr.translateFieldClass(unknownFC{}, newPathIndex(), ctfir.ScopeEventRecordPayload, nil)
	assert.Error(t, err)
}

type unknownFC struct{}

func (unknownFC) Kind() irsrc.FieldClassKind             { return irsrc.FieldClassKind(999) }
func (unknownFC) Alignment() uint64                      { return 0 }
func (unknownFC) UserAttributes() map[string]interface{} { return nil }

func TestTranslateFullTrace(t *testing.T) {
	tr := newTestTranslator(t, sinkcfg.CTFVersion2, ClkClsCfg{})
	ec := &fakeEventClass{id: 0, name: "ev", level: 6, hasLevel: true}
	sc := &fakeStreamClass{id: 0, eventClasses: []irsrc.EventClass{ec}}
	upstream := &fakeTrace{streamClasses: []irsrc.StreamClass{sc}}

	out, err := tr.Translate(upstream)
	assert.NoError(t, err)
	assert.Len(t, out.StreamClasses, 1)
	assert.Len(t, out.StreamClasses[0].EventClasses, 1)
	assert.Equal(t, "INFO", out.StreamClasses[0].EventClasses[0].LogLevel)
}
