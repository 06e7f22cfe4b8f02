// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ctf-tools/fs-sink/internal/ctfir"
	"github.com/ctf-tools/fs-sink/internal/irsrc"
	"github.com/ctf-tools/fs-sink/internal/jsonfrag"
	"github.com/ctf-tools/fs-sink/internal/sinkcfg"
	"github.com/ctf-tools/fs-sink/internal/sinkerr"
	"github.com/ctf-tools/fs-sink/internal/tracepath"
	"github.com/ctf-tools/fs-sink/internal/translate"
	"github.com/ctf-tools/fs-sink/internal/tsdl"

	uuid "github.com/satori/go.uuid"
)

// traceState is the sink's owned record for one upstream trace handle
// (spec.md §3 "Trace"): its output directory, its translated CTF-IR
// tree, and the live Streams belonging to it.
type traceState struct {
	dir          string
	metadataPath string

	ctfTrace        *ctfir.Trace
	streamClassByID map[uint64]*ctfir.StreamClass

	streams map[irsrc.Stream]*streamState

	// singleStreamClass decides the stream-file-naming collapse of
	// SPEC_FULL.md's supplemented "stream file naming" feature.
	singleStreamClass bool
}

// getOrCreateTrace materializes a Trace on first sight of any stream
// belonging to it: translates the upstream schema, derives and creates
// the trace directory, and registers the destruction listener that
// drives metadata flushing (spec.md §3, §9 "Destruction callback").
func (s *Sink) getOrCreateTrace(tr irsrc.Trace) (*traceState, error) {
	if ts, ok := s.traces[tr]; ok {
		return ts, nil
	}

	traceUUID := uuid.NewV4()
	translator := translate.NewTranslator(s.log, s.cfg.CTFVersion, s.clkCfg, traceUUID)
	ctfTrace, err := translator.Translate(tr)
	if err != nil {
		return nil, err
	}

	name, _ := tr.Name()
	dir, err := tracepath.Make(s.log, s.cfg.Path, s.cfg.AssumeSingleTrace, tr.Environment(), name)
	if err != nil {
		return nil, err
	}

	streamClassByID := make(map[uint64]*ctfir.StreamClass, len(ctfTrace.StreamClasses))
	for _, sc := range ctfTrace.StreamClasses {
		streamClassByID[sc.ID] = sc
	}

	ts := &traceState{
		dir:               dir,
		metadataPath:      filepath.Join(dir, "metadata"),
		ctfTrace:          ctfTrace,
		streamClassByID:   streamClassByID,
		streams:           make(map[irsrc.Stream]*streamState),
		singleStreamClass: len(ctfTrace.StreamClasses) == 1,
	}
	s.traces[tr] = ts

	tr.OnDestroy(func() {
		s.finalizeTrace(tr, ts)
	})

	s.log.Debugf("getOrCreateTrace: created %s", dir)
	return ts, nil
}

// finalizeTrace runs exactly once per trace, on upstream trace
// destruction: it emits the metadata file and, unless quiet, the
// acknowledgement line (spec.md §3 "Trace", §6 "Downstream emission").
// A metadata-write failure here is terminal: the destruction listener
// has no upstream channel left to report to (spec.md §4.1, §7).
func (s *Sink) finalizeTrace(tr irsrc.Trace, ts *traceState) {
	var metadata []byte
	var err error

	switch s.cfg.CTFVersion {
	case sinkcfg.CTFVersion1:
		var text string
		text, err = tsdl.Emit(ts.ctfTrace)
		metadata = []byte(text)
	default:
		metadata, err = jsonfrag.Emit(ts.ctfTrace)
	}

	if err == nil {
		err = writeFileAtomic(ts.metadataPath, metadata)
	}
	if err != nil {
		s.log.Fatalf("finalizeTrace: metadata write failed for trace %s: %s", ts.dir, err)
	}

	delete(s.traces, tr)

	if !s.cfg.Quiet {
		line := s.log.Noticef("Created CTF trace '%s'.", ts.dir)
		fmt.Println(line)
	}
}

// writeFileAtomic satisfies spec.md §3's "destruction MUST write the
// metadata file atomically": write to a sibling temp file, then rename
// over the final path.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return sinkerr.Wrap(sinkerr.IO, "writeFileAtomic", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return sinkerr.Wrap(sinkerr.IO, "writeFileAtomic", err)
	}
	return nil
}
