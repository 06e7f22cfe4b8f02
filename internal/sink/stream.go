// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ctf-tools/fs-sink/internal/ctfir"
	"github.com/ctf-tools/fs-sink/internal/irsrc"
	"github.com/ctf-tools/fs-sink/internal/packetwriter"
	"github.com/ctf-tools/fs-sink/internal/sinkcfg"
	"github.com/ctf-tools/fs-sink/internal/sinkerr"
)

// discRangeState tracks one pending discarded-events or
// discarded-packets range awaiting validation at the next packet
// boundary (spec.md §4.1 "Discarded-events range rule",
// "Discarded-packets range rule").
type discRangeState struct {
	inRange     bool
	beginningCS uint64
	endCS       uint64
	count       uint64
}

// streamState is the sink's owned record for one upstream stream
// handle (spec.md §3 "Stream"). isOpen/prevEndCS/seqNum/
// discardedEventsCounter correspond to PacketState/PrevPacketState;
// discEvents/discPackets correspond to DiscardedEventsState/
// DiscardedPacketsState.
type streamState struct {
	upstream             irsrc.Stream
	upstreamStreamClass  irsrc.StreamClass
	streamClass          *ctfir.StreamClass
	streamClassID        uint64
	streamInstanceID     uint64
	w                    packetwriter.Writer
	path                 string

	isOpen bool

	hasPrevEndCS bool
	prevEndCS    uint64

	discardedEventsCounter uint64
	seqNum                 uint64

	discEvents  discRangeState
	discPackets discRangeState
}

// handleStreamBeginning materializes a Stream on first sight, after
// validating the stream class's feature combination (spec.md §4.1
// "Stream-beginning validation").
func (s *Sink) handleStreamBeginning(msg irsrc.StreamBeginningMessage) error {
	upstreamStream := msg.Stream()
	tr := upstreamStream.Trace()

	ts, err := s.getOrCreateTrace(tr)
	if err != nil {
		return err
	}

	usc := upstreamStream.Class()
	csc, ok := ts.streamClassByID[usc.ID()]
	if !ok {
		return sinkerr.New(sinkerr.Bug, "handleStreamBeginning: stream class missing from translated trace")
	}
	if err := validateStreamClassFeatures(csc, s.cfg); err != nil {
		return err
	}

	name := ts.nextStreamFileName(csc.ID, upstreamStream.ID())
	path := filepath.Join(ts.dir, name)
	w, err := packetwriter.Open(path)
	if err != nil {
		return err
	}

	ts.streams[upstreamStream] = &streamState{
		upstream:            upstreamStream,
		upstreamStreamClass: usc,
		streamClass:         csc,
		streamClassID:       csc.ID,
		streamInstanceID:    upstreamStream.ID(),
		w:                   w,
		path:                path,
	}
	return nil
}

// handleStreamEnd closes any still-open artificial packet, closes the
// stream's file, and removes the Stream (spec.md §4.1 dispatch table).
func (s *Sink) handleStreamEnd(msg irsrc.StreamEndMessage) error {
	upstreamStream := msg.Stream()
	ss, err := s.lookupStream(upstreamStream)
	if err != nil {
		return err
	}

	if ss.isOpen {
		if ss.upstreamStreamClass.SupportsPackets() {
			return sinkerr.Upstreamf("handleStreamEnd", "stream ended with an explicit packet still open")
		}
		if err := s.closeAutoPacket(ss); err != nil {
			return err
		}
	}

	if err := ss.w.Close(); err != nil {
		return err
	}

	ts := s.traces[upstreamStream.Trace()]
	delete(ts.streams, upstreamStream)
	return nil
}

// validateStreamClassFeatures rejects the three unsupported feature
// combinations of spec.md §4.1 "Stream-beginning validation", each
// overridable by its matching ignore flag.
func validateStreamClassFeatures(sc *ctfir.StreamClass, cfg *sinkcfg.Config) error {
	hasFullPacketTS := sc.PacketsHaveBeginningTS && sc.PacketsHaveEndTS

	if sc.SupportsDiscardedEvents && !sc.SupportsPackets && !cfg.IgnoreDiscardedEvents {
		return sinkerr.Upstreamf("validateStreamClassFeatures",
			"stream class %d supports discarded events but not packets", sc.ID)
	}
	if sc.DiscardedEventsHaveTS && !hasFullPacketTS && !cfg.IgnoreDiscardedEvents {
		return sinkerr.Upstreamf("validateStreamClassFeatures",
			"stream class %d has discarded events with clock snapshots but packets lack begin/end clock snapshots", sc.ID)
	}
	if sc.DiscardedPacketsHaveTS && !hasFullPacketTS && !cfg.IgnoreDiscardedPackets {
		return sinkerr.Upstreamf("validateStreamClassFeatures",
			"stream class %d has discarded packets with clock snapshots but packets lack begin/end clock snapshots", sc.ID)
	}
	return nil
}

// nextStreamFileName implements SPEC_FULL.md's supplemented stream
// file naming rule: bare "stream" for the first stream of a
// single-stream-class trace, "stream-{class}-{instance}" otherwise.
func (ts *traceState) nextStreamFileName(streamClassID, streamInstanceID uint64) string {
	if ts.singleStreamClass && len(ts.streams) == 0 {
		// A stream begun after an earlier one ended must not reuse
		// (and truncate) the bare file the first stream wrote.
		if _, err := os.Stat(filepath.Join(ts.dir, "stream")); os.IsNotExist(err) {
			return "stream"
		}
	}
	return fmt.Sprintf("stream-%d-%d", streamClassID, streamInstanceID)
}
