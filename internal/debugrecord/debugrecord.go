// Package debugrecord implements the on-disk record format for the
// time-travel debugger: a flat, append-only log of execution events
// (steps, breakpoint hits, call-stack snapshots) captured during a run.
// Only the wire format lives here — replaying a recording back through an
// interpreter is an external collaborator's job, not this package's.
package debugrecord

import (
	"io"

	"quicksilver/internal/codec"
	qerrors "quicksilver/internal/errors"
)

// Magic is the 4-byte signature every recording begins with.
var Magic = [4]byte{'T', 'T', 'D', 'R'}

// Version is the format version this package writes.
const Version = 1

// EventKind tags the variant of a single recorded Event.
type EventKind uint8

const (
	EventStep EventKind = iota
	EventCallEnter
	EventCallExit
	EventBreakpointHit
	EventException
)

func (k EventKind) String() string {
	switch k {
	case EventCallEnter:
		return "CallEnter"
	case EventCallExit:
		return "CallExit"
	case EventBreakpointHit:
		return "BreakpointHit"
	case EventException:
		return "Exception"
	default:
		return "Step"
	}
}

// Frame mirrors one call-stack entry at the moment an Event was recorded.
type Frame struct {
	Function string
	File     string
	Line     uint32
	Column   uint32
}

// Event is a single recorded point in program execution.
type Event struct {
	Kind      EventKind
	Sequence  uint64
	TimestampUnixNano uint64
	ChunkID   uint64
	Offset    uint32
	Line      uint32
	Column    uint32
	Stack     []Frame
	Message   string // populated for EventException and EventBreakpointHit
}

// Recording is a complete captured run: header metadata plus the ordered
// event log.
type Recording struct {
	Version        uint32
	SourceFile     string
	RuntimeVersion string
	Events         []Event
}

// New returns an empty Recording ready to have events appended.
func New(sourceFile, runtimeVersion string) *Recording {
	return &Recording{Version: Version, SourceFile: sourceFile, RuntimeVersion: runtimeVersion}
}

// Append records one more event, stamping it with the next sequence
// number.
func (r *Recording) Append(e Event) {
	e.Sequence = uint64(len(r.Events))
	r.Events = append(r.Events, e)
}

// Save encodes r to w: magic, version, source file, runtime version, then
// a u32 event count followed by each event in order.
func Save(w io.Writer, r *Recording) error {
	cw := codec.NewWriter(w)
	cw.Raw(Magic[:])
	cw.Uint32(Version)
	cw.String(r.SourceFile)
	cw.String(r.RuntimeVersion)

	cw.Uint32(uint32(len(r.Events)))
	for _, e := range r.Events {
		writeEvent(cw, e)
	}
	return cw.Err()
}

// Load decodes a Recording from r, rejecting any version newer than this
// package's Version.
func Load(r io.Reader) (*Recording, error) {
	cr := codec.NewReader(r)

	var magic [4]byte
	copy(magic[:], cr.Raw(4))
	if magic != Magic {
		return nil, qerrors.CorruptSnapshot(nil, "debugrecord: bad magic")
	}

	version := cr.Uint32()
	if version > Version {
		return nil, qerrors.CorruptSnapshot(nil, "debugrecord: version %d newer than supported %d", version, Version)
	}

	rec := &Recording{Version: version}
	rec.SourceFile = cr.String()
	rec.RuntimeVersion = cr.String()

	count := cr.Uint32()
	rec.Events = make([]Event, 0, count)
	for i := uint32(0); i < count; i++ {
		e, err := readEvent(cr)
		if err != nil {
			return nil, err
		}
		rec.Events = append(rec.Events, e)
	}

	if err := cr.Err(); err != nil {
		return nil, err
	}
	return rec, nil
}

func writeEvent(w *codec.Writer, e Event) {
	w.Byte(byte(e.Kind))
	w.Uint64(e.Sequence)
	w.Uint64(e.TimestampUnixNano)
	w.Uint64(e.ChunkID)
	w.Uint32(e.Offset)
	w.Uint32(e.Line)
	w.Uint32(e.Column)

	w.Uint32(uint32(len(e.Stack)))
	for _, f := range e.Stack {
		w.String(f.Function)
		w.String(f.File)
		w.Uint32(f.Line)
		w.Uint32(f.Column)
	}

	w.String(e.Message)
}

func readEvent(r *codec.Reader) (Event, error) {
	e := Event{
		Kind:              EventKind(r.Byte()),
		Sequence:          r.Uint64(),
		TimestampUnixNano: r.Uint64(),
		ChunkID:           r.Uint64(),
		Offset:            r.Uint32(),
		Line:              r.Uint32(),
		Column:            r.Uint32(),
	}

	frameCount := r.Uint32()
	e.Stack = make([]Frame, 0, frameCount)
	for i := uint32(0); i < frameCount; i++ {
		e.Stack = append(e.Stack, Frame{
			Function: r.String(),
			File:     r.String(),
			Line:     r.Uint32(),
			Column:   r.Uint32(),
		})
	}

	e.Message = r.String()

	if err := r.Err(); err != nil {
		return Event{}, err
	}
	return e, nil
}
