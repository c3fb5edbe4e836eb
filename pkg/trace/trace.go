// Package trace writes a binary audit trail of remote calls, one
// flatbuffers-encoded frame per call, using the flatbuffers builder API
// directly rather than flatc-generated accessors — the format is small
// and internal enough that this module doesn't warrant an .fbs schema
// file or a generated-code step.
//
// Each record is size-prefixed (flatbuffers.FinishSizePrefixed), so the
// trace file is just those records concatenated; a reader walks it frame
// by frame without needing an index.
package trace

import (
	"fmt"
	"io"
	"os"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/google/uuid"

	"ptrinject/pkg/abi"
)

// Frame is one remote-call audit record — the Go-side view of the
// flatbuffers table Writer.Append encodes.
type Frame struct {
	SessionID uuid.UUID
	FuncAddr  uintptr
	Args      [abi.MaxArgs]uintptr
	Result    uintptr
	Duration  time.Duration
	Ok        bool
}

// field offsets within the flatbuffers vtable, matching the PrependXSlot
// calls in encode below: session id string, func addr, args vector,
// result, duration (ns), ok.
const (
	fieldSessionID = 0
	fieldFuncAddr  = 1
	fieldArgs      = 2
	fieldResult    = 3
	fieldDuration  = 4
	fieldOk        = 5
	numFields      = 6
)

// Writer appends Frame records to an open trace file.
type Writer struct {
	f *os.File
}

// Create opens path for appending trace frames, creating it if necessary.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("trace: open %v: %w", path, err)
	}
	return &Writer{f: f}, nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	return w.f.Close()
}

// Append encodes fr and appends it to the trace file. Write errors are
// logged by the caller, not fatal to the injection itself — a trace is a
// diagnostic aid, not part of the core contract.
func (w *Writer) Append(fr Frame) error {
	buf := encode(fr)
	if _, err := w.f.Write(buf); err != nil {
		return fmt.Errorf("trace: append: %w", err)
	}
	return nil
}

func encode(fr Frame) []byte {
	b := flatbuffers.NewBuilder(128)

	sessStr := b.CreateString(fr.SessionID.String())

	b.StartVector(8, abi.MaxArgs, 8)
	for i := abi.MaxArgs - 1; i >= 0; i-- {
		b.PrependUint64(uint64(fr.Args[i]))
	}
	argsVec := b.EndVector(abi.MaxArgs)

	b.StartObject(numFields)
	b.PrependUOffsetTSlot(fieldSessionID, sessStr, 0)
	b.PrependUint64Slot(fieldFuncAddr, uint64(fr.FuncAddr), 0)
	b.PrependUOffsetTSlot(fieldArgs, argsVec, 0)
	b.PrependUint64Slot(fieldResult, uint64(fr.Result), 0)
	b.PrependInt64Slot(fieldDuration, fr.Duration.Nanoseconds(), 0)
	b.PrependBoolSlot(fieldOk, fr.Ok, false)
	root := b.EndObject()

	b.FinishSizePrefixed(root)
	return b.FinishedBytes()
}

// ReadAll decodes every frame in an existing trace file, for post-mortem
// replay or inspection.
func ReadAll(path string) ([]Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trace: open %v: %w", path, err)
	}
	defer f.Close()

	var frames []Frame
	for {
		fr, err := readFrame(f)
		if err == io.EOF {
			break
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, fr)
	}
	return frames, nil
}

func readFrame(f *os.File) (Frame, error) {
	var sizeBuf [flatbuffers.SizeUint32]byte
	if _, err := io.ReadFull(f, sizeBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Frame{}, io.EOF
		}
		return Frame{}, err
	}
	size := flatbuffers.GetSizePrefix(sizeBuf[:], 0)

	payload := make([]byte, int(size))
	if _, err := io.ReadFull(f, payload); err != nil {
		return Frame{}, fmt.Errorf("trace: truncated frame: %w", err)
	}

	whole := append(sizeBuf[:], payload...)
	n := flatbuffers.GetUOffsetT(whole[flatbuffers.SizeUint32:])
	tab := &flatbuffers.Table{
		Bytes: whole,
		Pos:   n + flatbuffers.SizeUint32,
	}

	fieldOffset := func(field int) flatbuffers.UOffsetT {
		return flatbuffers.UOffsetT(tab.Offset(flatbuffers.VOffsetT((field + 2) * 2)))
	}

	var fr Frame
	if o := fieldOffset(fieldSessionID); o != 0 {
		sid, err := uuid.Parse(tab.String(o + tab.Pos))
		if err == nil {
			fr.SessionID = sid
		}
	}
	if o := fieldOffset(fieldFuncAddr); o != 0 {
		fr.FuncAddr = uintptr(tab.GetUint64(o + tab.Pos))
	}
	if o := fieldOffset(fieldArgs); o != 0 {
		vec := tab.Vector(o + tab.Pos)
		for i := 0; i < abi.MaxArgs; i++ {
			fr.Args[i] = uintptr(tab.GetUint64(vec + flatbuffers.UOffsetT(i*8)))
		}
	}
	if o := fieldOffset(fieldResult); o != 0 {
		fr.Result = uintptr(tab.GetUint64(o + tab.Pos))
	}
	if o := fieldOffset(fieldDuration); o != 0 {
		fr.Duration = time.Duration(tab.GetInt64(o + tab.Pos))
	}
	if o := fieldOffset(fieldOk); o != 0 {
		fr.Ok = tab.GetBool(o + tab.Pos)
	}
	return fr, nil
}
