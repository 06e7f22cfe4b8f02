// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"encoding/json"

	"github.com/google/go-cmp/cmp"

	"github.com/ctf-tools/fs-sink/internal/irsrc"
	"github.com/ctf-tools/fs-sink/internal/sinkerr"
)

// handlePacketBeginning validates any pending discarded-events/
// discarded-packets range against this packet's beginning (spec.md
// §4.1 "Discarded-events range rule", "Discarded-packets range rule")
// and opens the packet.
func (s *Sink) handlePacketBeginning(msg irsrc.PacketBeginningMessage) error {
	ss, err := s.lookupStream(msg.Stream())
	if err != nil {
		return err
	}
	if ss.isOpen {
		return sinkerr.New(sinkerr.Bug, "handlePacketBeginning: packet already open")
	}

	cs, hasCS := msg.ClockSnapshot()

	if ss.discEvents.inRange {
		expected := ss.prevEndCS
		if !ss.hasPrevEndCS {
			if !hasCS {
				return sinkerr.Upstreamf("handlePacketBeginning",
					"discarded-events range pending on the first packet, but the packet has no beginning clock snapshot")
			}
			expected = cs
		}
		if ss.discEvents.beginningCS != expected {
			s.log.Debugf("handlePacketBeginning: discarded-events beginning_cs mismatch (%s)",
				cmp.Diff(expected, ss.discEvents.beginningCS))
			return sinkerr.Upstreamf("handlePacketBeginning",
				"discarded-events beginning_cs mismatch: got %d, want %d", ss.discEvents.beginningCS, expected)
		}
	}

	if ss.discPackets.inRange {
		if !ss.hasPrevEndCS {
			return sinkerr.Upstreamf("handlePacketBeginning", "discarded-packets range precedes any closed packet")
		}
		if ss.discPackets.beginningCS != ss.prevEndCS {
			s.log.Debugf("handlePacketBeginning: discarded-packets beginning_cs mismatch (%s)",
				cmp.Diff(ss.prevEndCS, ss.discPackets.beginningCS))
			return sinkerr.Upstreamf("handlePacketBeginning",
				"discarded-packets beginning_cs mismatch: got %d, want %d", ss.discPackets.beginningCS, ss.prevEndCS)
		}
		if !hasCS || ss.discPackets.endCS != cs {
			return sinkerr.Upstreamf("handlePacketBeginning", "discarded-packets end_cs does not match this packet's beginning_cs")
		}
		ss.seqNum += ss.discPackets.count
		ss.discPackets = discRangeState{}
	}

	if err := ss.w.OpenPacket(ss.streamClassID, ss.streamInstanceID, csPtr(cs, hasCS)); err != nil {
		return err
	}
	ss.isOpen = true
	return nil
}

// handlePacketEnd validates a pending discarded-events range against
// this packet's end and closes the packet.
func (s *Sink) handlePacketEnd(msg irsrc.PacketEndMessage) error {
	ss, err := s.lookupStream(msg.Stream())
	if err != nil {
		return err
	}
	if !ss.isOpen {
		return sinkerr.New(sinkerr.Bug, "handlePacketEnd: no packet open")
	}

	cs, hasCS := msg.ClockSnapshot()

	if ss.discEvents.inRange {
		if !hasCS || ss.discEvents.endCS != cs {
			return sinkerr.Upstreamf("handlePacketEnd", "discarded-events end_cs does not match this packet's end_cs")
		}
		ss.discardedEventsCounter += ss.discEvents.count
		ss.discEvents = discRangeState{}
	}

	if err := ss.w.ClosePacket(csPtr(cs, hasCS)); err != nil {
		return err
	}
	ss.isOpen = false
	ss.hasPrevEndCS = hasCS
	ss.prevEndCS = cs
	ss.seqNum++
	return nil
}

// handleEvent appends one event to the currently open packet,
// synthesizing packets when the stream class has no packet concept of
// its own (spec.md §4.1 "Artificial packetization").
func (s *Sink) handleEvent(msg irsrc.EventMessage) error {
	ss, err := s.lookupStream(msg.Stream())
	if err != nil {
		return err
	}

	if !ss.upstreamStreamClass.SupportsPackets() {
		if !ss.isOpen {
			if err := s.openAutoPacket(ss); err != nil {
				return err
			}
		} else if ss.w.BytesWrittenInOpenPacket() > autoPacketThreshold {
			if err := s.closeAutoPacket(ss); err != nil {
				return err
			}
			if err := s.openAutoPacket(ss); err != nil {
				return err
			}
		}
	}

	if !ss.isOpen {
		return sinkerr.Upstreamf("handleEvent", "event delivered with no open packet")
	}

	ec := msg.EventClass()
	cs, hasCS := msg.ClockSnapshot()
	return ss.w.AppendEvent(ec.ID(), csPtr(cs, hasCS), encodeEventPayload(msg))
}

func (s *Sink) openAutoPacket(ss *streamState) error {
	if err := ss.w.OpenPacket(ss.streamClassID, ss.streamInstanceID, nil); err != nil {
		return err
	}
	ss.isOpen = true
	return nil
}

func (s *Sink) closeAutoPacket(ss *streamState) error {
	if err := ss.w.ClosePacket(nil); err != nil {
		return err
	}
	ss.isOpen = false
	ss.hasPrevEndCS = false
	ss.seqNum++
	return nil
}

// handleDiscardedEvents records a pending discarded-events range,
// rejecting a range accepted while a packet is open or immediately
// after another unresolved range (spec.md §4.1 "Discarded-events range
// rule", "Contiguous discarded-events ... are fatal").
func (s *Sink) handleDiscardedEvents(msg irsrc.DiscardedEventsMessage) error {
	ss, err := s.lookupStream(msg.Stream())
	if err != nil {
		return err
	}
	if s.cfg.IgnoreDiscardedEvents {
		return nil
	}

	count, hasCount := msg.Count()
	n := uint64(1)
	if hasCount {
		n = count
	}

	if !ss.streamClass.DiscardedEventsHaveTS {
		ss.discardedEventsCounter += n
		return nil
	}

	if ss.isOpen {
		return sinkerr.Upstreamf("handleDiscardedEvents", "discarded-events message with clock snapshots while a packet is open")
	}
	if ss.discEvents.inRange {
		return sinkerr.Upstreamf("handleDiscardedEvents", "contiguous discarded-events messages")
	}

	beginCS, ok1 := msg.BeginningClockSnapshot()
	endCS, ok2 := msg.EndClockSnapshot()
	if !ok1 || !ok2 {
		return sinkerr.Upstreamf("handleDiscardedEvents", "discarded-events message missing required clock snapshots")
	}
	ss.discEvents = discRangeState{inRange: true, beginningCS: beginCS, endCS: endCS, count: n}
	return nil
}

// handleDiscardedPackets records a pending discarded-packets range
// (spec.md §4.1 "Discarded-packets range rule").
func (s *Sink) handleDiscardedPackets(msg irsrc.DiscardedPacketsMessage) error {
	ss, err := s.lookupStream(msg.Stream())
	if err != nil {
		return err
	}
	if s.cfg.IgnoreDiscardedPackets {
		return nil
	}
	if ss.isOpen {
		return sinkerr.Upstreamf("handleDiscardedPackets", "discarded-packets message while a packet is open")
	}
	if ss.discPackets.inRange {
		return sinkerr.Upstreamf("handleDiscardedPackets", "contiguous discarded-packets messages")
	}

	beginCS, ok1 := msg.BeginningClockSnapshot()
	endCS, ok2 := msg.EndClockSnapshot()
	if !ok1 || !ok2 {
		return sinkerr.Upstreamf("handleDiscardedPackets", "discarded-packets message missing required clock snapshots")
	}
	count, hasCount := msg.Count()
	n := uint64(1)
	if hasCount {
		n = count
	}
	ss.discPackets = discRangeState{inRange: true, beginningCS: beginCS, endCS: endCS, count: n}
	return nil
}

// encodeEventPayload flattens an event's three opaque value trees into
// the byte slice the packet writer façade appends unexamined (spec.md
// §1 "does not validate event payload values"). The concrete
// representation is this sink's own default Writer's business, not a
// constraint spec.md places on the wire format.
func encodeEventPayload(msg irsrc.EventMessage) []byte {
	data, err := json.Marshal(struct {
		CommonContext   interface{} `json:"common_context,omitempty"`
		SpecificContext interface{} `json:"specific_context,omitempty"`
		Payload         interface{} `json:"payload,omitempty"`
	}{msg.CommonContext(), msg.SpecificContext(), msg.Payload()})
	if err != nil {
		return nil
	}
	return data
}
