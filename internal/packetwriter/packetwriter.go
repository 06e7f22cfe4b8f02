// SPDX-License-Identifier: Apache-2.0

// Package packetwriter implements C6, the packet writer façade (spec.md
// §4.6). spec.md treats the façade as an opaque capability "assumed
// provided by an external library"; this package is the concrete
// default the sink drives, file handling grounded on the teacher's
// os.Create-then-Write idiom (cmd/volumemgr/create.go).
package packetwriter

import (
	"encoding/binary"
	"os"

	"github.com/ctf-tools/fs-sink/internal/sinkerr"
)

// Writer is the façade the sink's artificial-packetization and
// counter bookkeeping (spec.md §4.1) drives. It has no knowledge of
// stream classes or discarded-range validation; the caller enforces
// those invariants and only calls the operations below.
type Writer interface {
	OpenPacket(streamID, streamInstanceID uint64, beginCS *uint64) error
	AppendEvent(eventClassID uint64, clockCS *uint64, payload []byte) error
	ClosePacket(endCS *uint64) error
	BytesWrittenInOpenPacket() uint64
	Close() error
}

// packetMagic is the fixed packet-header magic (spec.md §4.4 "Packet
// header").
const packetMagic uint32 = 0xC1FC1FC1

// fileWriter is the default Writer, appending raw packets to one
// per-stream file opened for the lifetime of the Stream.
type fileWriter struct {
	f *os.File

	open       bool
	bodyBuf    []byte
	beginCS    *uint64
	streamID   uint64
	instanceID uint64
}

// Open creates (or truncates, on a rerun) the stream's backing file at
// path. The file is held open across consume() calls, closed on
// stream-end, per spec.md §5 "Shared resources".
func Open(path string) (Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, sinkerr.Wrap(sinkerr.IO, "packetwriter.Open", err)
	}
	return &fileWriter{f: f}, nil
}

func (w *fileWriter) OpenPacket(streamID, streamInstanceID uint64, beginCS *uint64) error {
	if w.open {
		return sinkerr.New(sinkerr.Bug, "packetwriter.OpenPacket: packet already open")
	}
	w.open = true
	w.streamID = streamID
	w.instanceID = streamInstanceID
	w.beginCS = beginCS
	w.bodyBuf = w.bodyBuf[:0]
	return nil
}

func (w *fileWriter) AppendEvent(eventClassID uint64, clockCS *uint64, payload []byte) error {
	if !w.open {
		return sinkerr.New(sinkerr.Bug, "packetwriter.AppendEvent: no packet open")
	}
	var hdr [8]byte
	binary.LittleEndian.PutUint64(hdr[:], eventClassID)
	w.bodyBuf = append(w.bodyBuf, hdr[:]...)
	if clockCS != nil {
		var ts [8]byte
		binary.LittleEndian.PutUint64(ts[:], *clockCS)
		w.bodyBuf = append(w.bodyBuf, ts[:]...)
	}
	w.bodyBuf = append(w.bodyBuf, payload...)
	return nil
}

func (w *fileWriter) ClosePacket(endCS *uint64) error {
	if !w.open {
		return sinkerr.New(sinkerr.Bug, "packetwriter.ClosePacket: no packet open")
	}

	var hdr [36]byte
	binary.LittleEndian.PutUint32(hdr[0:4], packetMagic)
	binary.LittleEndian.PutUint64(hdr[4:12], w.streamID)
	binary.LittleEndian.PutUint64(hdr[12:20], w.instanceID)
	contentLen := uint64(len(hdr) + len(w.bodyBuf))
	binary.LittleEndian.PutUint64(hdr[20:28], contentLen)
	if w.beginCS != nil {
		binary.LittleEndian.PutUint64(hdr[28:36], *w.beginCS)
	}

	if _, err := w.f.Write(hdr[:]); err != nil {
		return sinkerr.Wrap(sinkerr.IO, "packetwriter.ClosePacket", err)
	}
	if _, err := w.f.Write(w.bodyBuf); err != nil {
		return sinkerr.Wrap(sinkerr.IO, "packetwriter.ClosePacket", err)
	}

	w.open = false
	w.bodyBuf = w.bodyBuf[:0]
	w.beginCS = nil
	return nil
}

func (w *fileWriter) BytesWrittenInOpenPacket() uint64 {
	if !w.open {
		return 0
	}
	return uint64(len(w.bodyBuf))
}

func (w *fileWriter) Close() error {
	if err := w.f.Close(); err != nil {
		return sinkerr.Wrap(sinkerr.IO, "packetwriter.Close", err)
	}
	return nil
}
