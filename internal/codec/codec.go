// Package codec implements the little-endian, length-prefixed binary
// primitives the snapshot and debug-recording wire formats are built from.
// Every write/read pair here mirrors a field order fixed by the wire
// format it serves — this package does not interpret meaning, only bytes.
package codec

import (
	"encoding/binary"
	"io"
	"math"
	"unicode/utf8"

	qerrors "quicksilver/internal/errors"
)

// Writer accumulates bytes for a wire format, tracking the first error so
// callers can chain writes without checking every call — mirroring the
// teacher's manual tar/gzip bundle writer.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter wraps an io.Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first error encountered, if any.
func (w *Writer) Err() error { return w.err }

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(p)
	if w.err != nil {
		w.err = qerrors.IO(w.err, "codec: write failed")
	}
}

// Byte writes a single raw byte.
func (w *Writer) Byte(b byte) { w.write([]byte{b}) }

// Raw writes b with no length prefix, for fixed-size fields like a magic
// number whose size is implicit in the format rather than on the wire.
func (w *Writer) Raw(b []byte) { w.write(b) }

// Bool writes a one-byte boolean flag (0 or 1).
func (w *Writer) Bool(b bool) {
	if b {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}

// Uint16 writes a little-endian u16.
func (w *Writer) Uint16(v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	w.write(buf[:])
}

// Uint32 writes a little-endian u32.
func (w *Writer) Uint32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.write(buf[:])
}

// Uint64 writes a little-endian u64.
func (w *Writer) Uint64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	w.write(buf[:])
}

// Int16 writes a little-endian signed i16.
func (w *Writer) Int16(v int16) { w.Uint16(uint16(v)) }

// Float64 writes a little-endian IEEE-754 double.
func (w *Writer) Float64(v float64) { w.Uint64(math.Float64bits(v)) }

// Bytes writes a u32 length prefix followed by raw bytes.
func (w *Writer) Bytes(b []byte) {
	w.Uint32(uint32(len(b)))
	w.write(b)
}

// String writes a u32 length-prefixed UTF-8 string.
func (w *Writer) String(s string) { w.Bytes([]byte(s)) }

// Reader consumes bytes from a wire format, tracking the first error the
// same way Writer does.
type Reader struct {
	r   io.Reader
	err error
}

// NewReader wraps an io.Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Err returns the first error encountered, if any.
func (r *Reader) Err() error { return r.err }

func (r *Reader) read(n int) []byte {
	if r.err != nil {
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.err = qerrors.CorruptSnapshot(err, "codec: short read (want %d bytes)", n)
		return nil
	}
	return buf
}

// Raw reads exactly n raw bytes with no length prefix.
func (r *Reader) Raw(n int) []byte { return r.read(n) }

// Byte reads a single raw byte.
func (r *Reader) Byte() byte {
	b := r.read(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// Bool reads a one-byte boolean flag.
func (r *Reader) Bool() bool { return r.Byte() != 0 }

// Uint16 reads a little-endian u16.
func (r *Reader) Uint16() uint16 {
	b := r.read(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// Uint32 reads a little-endian u32.
func (r *Reader) Uint32() uint32 {
	b := r.read(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Uint64 reads a little-endian u64.
func (r *Reader) Uint64() uint64 {
	b := r.read(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// Int16 reads a little-endian signed i16.
func (r *Reader) Int16() int16 { return int16(r.Uint16()) }

// Float64 reads a little-endian IEEE-754 double.
func (r *Reader) Float64() float64 { return math.Float64frombits(r.Uint64()) }

// Bytes reads a u32 length prefix followed by that many raw bytes.
func (r *Reader) Bytes() []byte {
	n := r.Uint32()
	if r.err != nil {
		return nil
	}
	return r.read(int(n))
}

// String reads a u32 length-prefixed UTF-8 string. Bytes that do not form
// valid UTF-8 set the sticky error to a Corrupt snapshot error, the same
// way a short read does, instead of silently admitting them.
func (r *Reader) String() string {
	b := r.Bytes()
	if b == nil {
		return ""
	}
	if !utf8.Valid(b) {
		r.err = qerrors.CorruptSnapshot(nil, "codec: string field is not valid UTF-8")
		return ""
	}
	return string(b)
}
