// SPDX-License-Identifier: Apache-2.0

package main

import "github.com/ctf-tools/fs-sink/internal/irsrc"

type streamBeginningMsg struct{ stream irsrc.Stream }

func (m *streamBeginningMsg) Kind() irsrc.MessageKind { return irsrc.MessageStreamBeginning }
func (m *streamBeginningMsg) Stream() irsrc.Stream    { return m.stream }

type streamEndMsg struct{ stream irsrc.Stream }

func (m *streamEndMsg) Kind() irsrc.MessageKind { return irsrc.MessageStreamEnd }
func (m *streamEndMsg) Stream() irsrc.Stream    { return m.stream }

type packetBeginningMsg struct {
	stream irsrc.Stream
	cs     uint64
	hasCS  bool
}

func (m *packetBeginningMsg) Kind() irsrc.MessageKind    { return irsrc.MessagePacketBeginning }
func (m *packetBeginningMsg) Stream() irsrc.Stream       { return m.stream }
func (m *packetBeginningMsg) ClockSnapshot() (uint64, bool) { return m.cs, m.hasCS }

type packetEndMsg struct {
	stream irsrc.Stream
	cs     uint64
	hasCS  bool
}

func (m *packetEndMsg) Kind() irsrc.MessageKind       { return irsrc.MessagePacketEnd }
func (m *packetEndMsg) Stream() irsrc.Stream          { return m.stream }
func (m *packetEndMsg) ClockSnapshot() (uint64, bool) { return m.cs, m.hasCS }

type eventMsg struct {
	stream          irsrc.Stream
	eventClass      irsrc.EventClass
	cs              uint64
	hasCS           bool
	commonContext   interface{}
	specificContext interface{}
	payload         interface{}
}

func (m *eventMsg) Kind() irsrc.MessageKind         { return irsrc.MessageEvent }
func (m *eventMsg) Stream() irsrc.Stream            { return m.stream }
func (m *eventMsg) EventClass() irsrc.EventClass    { return m.eventClass }
func (m *eventMsg) ClockSnapshot() (uint64, bool)   { return m.cs, m.hasCS }
func (m *eventMsg) CommonContext() interface{}      { return m.commonContext }
func (m *eventMsg) SpecificContext() interface{}    { return m.specificContext }
func (m *eventMsg) Payload() interface{}            { return m.payload }

type discardedRangeMsg struct {
	kind     irsrc.MessageKind
	stream   irsrc.Stream
	beginCS  uint64
	hasBegin bool
	endCS    uint64
	hasEnd   bool
	count    uint64
	hasCount bool
}

func (m *discardedRangeMsg) Kind() irsrc.MessageKind { return m.kind }
func (m *discardedRangeMsg) Stream() irsrc.Stream    { return m.stream }
func (m *discardedRangeMsg) BeginningClockSnapshot() (uint64, bool) { return m.beginCS, m.hasBegin }
func (m *discardedRangeMsg) EndClockSnapshot() (uint64, bool)       { return m.endCS, m.hasEnd }
func (m *discardedRangeMsg) Count() (uint64, bool)                 { return m.count, m.hasCount }

type iteratorInactivityMsg struct{}

func (m *iteratorInactivityMsg) Kind() irsrc.MessageKind { return irsrc.MessageIteratorInactivity }
