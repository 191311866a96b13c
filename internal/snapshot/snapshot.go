// Package snapshot implements the versioned binary snapshot format: a
// wire-exact encoding of a set of chunks, global bindings, and optional
// original source text, suitable for loading straight back into a fresh
// runtime without recompiling.
package snapshot

import (
	"bytes"
	"hash/crc32"
	"io"
	"sort"

	"quicksilver/internal/chunk"
	"quicksilver/internal/codec"
	qerrors "quicksilver/internal/errors"
	"quicksilver/internal/value"
)

// Magic is the 4-byte file signature every snapshot begins with.
var Magic = [4]byte{'Q', 'S', 'S', 0x01}

// Version is the format version this package writes. Readers reject any
// stream whose version exceeds Version; they still accept older streams,
// including v2 streams that carry no checksum.
const Version = 3

// checksumIntroducedAtVersion is the first version whose writer emits (and
// whose reader verifies) the trailing-body CRC-32 checksum. Earlier
// streams have no checksum field at all.
const checksumIntroducedAtVersion = 3

// Snapshot is the in-memory form of a loaded or to-be-saved snapshot.
type Snapshot struct {
	Version        uint32
	Filename       string
	CreatedAtUnix  uint64
	RuntimeVersion string
	Source         string
	HasSource      bool
	Chunks         []*chunk.Chunk
	Globals        map[string]value.Value
}

// New returns an empty snapshot at the current writer Version.
func New(filename, runtimeVersion string, createdAtUnix uint64) *Snapshot {
	return &Snapshot{
		Version:        Version,
		Filename:       filename,
		CreatedAtUnix:  createdAtUnix,
		RuntimeVersion: runtimeVersion,
		Globals:        make(map[string]value.Value),
	}
}

// Save encodes s to w. The header is magic, version, checksum, then the
// body (filename, created_at, runtime_version, optional source, chunks,
// globals). The checksum is the CRC-32 (IEEE polynomial) of every byte of
// the body, computed before the header is written.
func Save(w io.Writer, s *Snapshot) error {
	var body bytes.Buffer
	bw := codec.NewWriter(&body)

	bw.String(s.Filename)
	bw.Uint64(s.CreatedAtUnix)
	bw.String(s.RuntimeVersion)

	bw.Bool(s.HasSource)
	if s.HasSource {
		bw.String(s.Source)
	}

	bw.Uint32(uint32(len(s.Chunks)))
	for _, c := range s.Chunks {
		writeChunk(bw, c)
	}

	names := make([]string, 0, len(s.Globals))
	for name := range s.Globals {
		names = append(names, name)
	}
	sort.Strings(names)
	bw.Uint32(uint32(len(names)))
	for _, name := range names {
		bw.String(name)
		writeValue(bw, s.Globals[name])
	}

	if err := bw.Err(); err != nil {
		return err
	}

	checksum := crc32.ChecksumIEEE(body.Bytes())

	hw := codec.NewWriter(w)
	hw.Raw(Magic[:])
	hw.Uint32(Version)
	hw.Uint32(checksum)
	if err := hw.Err(); err != nil {
		return err
	}

	_, err := w.Write(body.Bytes())
	if err != nil {
		return qerrors.IO(err, "snapshot: write body failed")
	}
	return nil
}

// Load decodes a Snapshot from r. Versions newer than this package's
// Version are rejected; versions at or above checksumIntroducedAtVersion
// have their checksum verified, earlier versions have none to check.
func Load(r io.Reader) (*Snapshot, error) {
	full, err := io.ReadAll(r)
	if err != nil {
		return nil, qerrors.IO(err, "snapshot: read failed")
	}

	hr := codec.NewReader(bytes.NewReader(full))
	var magic [4]byte
	copy(magic[:], hr.Raw(4))
	if magic != Magic {
		return nil, qerrors.CorruptSnapshot(nil, "snapshot: bad magic")
	}
	version := hr.Uint32()
	if version > Version {
		return nil, qerrors.CorruptSnapshot(nil, "snapshot: version %d newer than supported %d", version, Version)
	}

	headerLen := 4 + 4
	var checksum uint32
	if version >= checksumIntroducedAtVersion {
		checksum = hr.Uint32()
		headerLen += 4
	}
	if err := hr.Err(); err != nil {
		return nil, err
	}

	body := full[headerLen:]
	if version >= checksumIntroducedAtVersion {
		if got := crc32.ChecksumIEEE(body); got != checksum {
			return nil, qerrors.CorruptSnapshot(nil, "snapshot: checksum mismatch (want %08x, got %08x)", checksum, got)
		}
	}

	br := codec.NewReader(bytes.NewReader(body))
	s := &Snapshot{Version: version, Globals: make(map[string]value.Value)}

	s.Filename = br.String()
	s.CreatedAtUnix = br.Uint64()
	s.RuntimeVersion = br.String()

	s.HasSource = br.Bool()
	if s.HasSource {
		s.Source = br.String()
	}

	chunkCount := br.Uint32()
	s.Chunks = make([]*chunk.Chunk, 0, chunkCount)
	for i := uint32(0); i < chunkCount; i++ {
		c, err := readChunk(br)
		if err != nil {
			return nil, err
		}
		s.Chunks = append(s.Chunks, c)
	}

	globalCount := br.Uint32()
	for i := uint32(0); i < globalCount; i++ {
		name := br.String()
		v, err := readValue(br)
		if err != nil {
			return nil, err
		}
		s.Globals[name] = v
	}

	if err := br.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

func writeChunk(w *codec.Writer, c *chunk.Chunk) {
	w.Bytes(c.Code)

	w.Uint32(uint32(len(c.Constants)))
	for _, v := range c.Constants {
		writeValue(w, v)
	}

	w.Uint32(uint32(len(c.Lines)))
	for _, l := range c.Lines {
		w.Uint32(l)
	}

	w.Uint32(uint32(len(c.Columns)))
	for _, col := range c.Columns {
		w.Uint32(col)
	}

	w.Uint32(uint32(len(c.Locals)))
	for _, name := range c.Locals {
		w.String(name)
	}

	w.Byte(c.RegisterCount)
	w.Byte(c.ParamCount)
	w.Bool(c.HasRestParam)
	w.Bool(c.IsAsync)
	w.Bool(c.IsGenerator)
	w.Bool(c.IsStrict)

	w.Bool(c.HasSourceFile)
	if c.HasSourceFile {
		w.String(c.SourceFile)
	}
}

func readChunk(r *codec.Reader) (*chunk.Chunk, error) {
	c := chunk.New()
	c.Code = r.Bytes()

	constCount := r.Uint32()
	c.Constants = make([]value.Value, 0, constCount)
	for i := uint32(0); i < constCount; i++ {
		v, err := readValue(r)
		if err != nil {
			return nil, err
		}
		c.Constants = append(c.Constants, v)
	}

	lineCount := r.Uint32()
	c.Lines = make([]uint32, lineCount)
	for i := range c.Lines {
		c.Lines[i] = r.Uint32()
	}

	colCount := r.Uint32()
	c.Columns = make([]uint32, colCount)
	for i := range c.Columns {
		c.Columns[i] = r.Uint32()
	}

	localCount := r.Uint32()
	c.Locals = make([]string, 0, localCount)
	for i := uint32(0); i < localCount; i++ {
		c.Locals = append(c.Locals, r.String())
	}

	c.RegisterCount = r.Byte()
	c.ParamCount = r.Byte()
	c.HasRestParam = r.Bool()
	c.IsAsync = r.Bool()
	c.IsGenerator = r.Bool()
	c.IsStrict = r.Bool()

	c.HasSourceFile = r.Bool()
	if c.HasSourceFile {
		c.SourceFile = r.String()
	}

	if err := r.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

// Tag bytes for the TaggedValue union. Order and numbering match the
// original snapshot format exactly.
const (
	tagUndefined = 0
	tagNull      = 1
	tagBoolean   = 2
	tagNumber    = 3
	tagString    = 4
	tagSymbol    = 5
	tagArray     = 6
	tagObject    = 7
	tagFunction  = 8
	tagBigInt    = 9
	tagDate      = 10
	tagMap       = 11
	tagSet       = 12
	tagError     = 13
)

func writeValue(w *codec.Writer, v value.Value) {
	switch v.Kind {
	case value.KindUndefined:
		w.Byte(tagUndefined)
	case value.KindNull:
		w.Byte(tagNull)
	case value.KindBoolean:
		w.Byte(tagBoolean)
		w.Bool(v.Boolean)
	case value.KindNumber:
		w.Byte(tagNumber)
		w.Float64(v.Number)
	case value.KindString:
		w.Byte(tagString)
		w.String(v.Str)
	case value.KindSymbol:
		w.Byte(tagSymbol)
		w.Uint64(v.Symbol)
	case value.KindArray:
		w.Byte(tagArray)
		w.Uint32(uint32(len(v.Array)))
		for _, item := range v.Array {
			writeValue(w, item)
		}
	case value.KindObject:
		w.Byte(tagObject)
		props := make([]value.KeyValue, len(v.Object))
		copy(props, v.Object)
		sort.Slice(props, func(i, j int) bool { return props[i].Key < props[j].Key })
		w.Uint32(uint32(len(props)))
		for _, kv := range props {
			w.String(kv.Key)
			writeValue(w, kv.Value)
		}
	case value.KindFunction:
		w.Byte(tagFunction)
		if c, ok := v.Function.(*chunk.Chunk); ok {
			writeChunk(w, c)
		} else {
			writeChunk(w, chunk.New())
		}
	case value.KindBigInt:
		w.Byte(tagBigInt)
		w.String(v.Str)
	case value.KindDate:
		w.Byte(tagDate)
		w.Float64(v.Number)
	case value.KindMap:
		w.Byte(tagMap)
		w.Uint32(uint32(len(v.MapPairs)))
		for _, p := range v.MapPairs {
			writeValue(w, p.Key)
			writeValue(w, p.Value)
		}
	case value.KindSet:
		w.Byte(tagSet)
		w.Uint32(uint32(len(v.SetItems)))
		for _, item := range v.SetItems {
			writeValue(w, item)
		}
	case value.KindError:
		w.Byte(tagError)
		w.String(v.Err.Name)
		w.String(v.Err.Message)
		w.Bool(v.Err.HasStack)
		if v.Err.HasStack {
			w.String(v.Err.Stack)
		}
	}
}

func readValue(r *codec.Reader) (value.Value, error) {
	tag := r.Byte()
	switch tag {
	case tagUndefined:
		return value.Undefined(), nil
	case tagNull:
		return value.Null(), nil
	case tagBoolean:
		return value.Bool(r.Bool()), nil
	case tagNumber:
		return value.Num(r.Float64()), nil
	case tagString:
		return value.Str(r.String()), nil
	case tagSymbol:
		return value.Sym(r.Uint64()), nil
	case tagArray:
		n := r.Uint32()
		items := make([]value.Value, 0, n)
		for i := uint32(0); i < n; i++ {
			v, err := readValue(r)
			if err != nil {
				return value.Value{}, err
			}
			items = append(items, v)
		}
		return value.NewArray(items), nil
	case tagObject:
		n := r.Uint32()
		props := make([]value.KeyValue, 0, n)
		for i := uint32(0); i < n; i++ {
			key := r.String()
			v, err := readValue(r)
			if err != nil {
				return value.Value{}, err
			}
			props = append(props, value.KeyValue{Key: key, Value: v})
		}
		return value.NewObject(props), nil
	case tagFunction:
		c, err := readChunk(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewFunction(c), nil
	case tagBigInt:
		return value.BigInt(r.String()), nil
	case tagDate:
		return value.NewDate(r.Float64()), nil
	case tagMap:
		n := r.Uint32()
		pairs := make([]value.Pair, 0, n)
		for i := uint32(0); i < n; i++ {
			k, err := readValue(r)
			if err != nil {
				return value.Value{}, err
			}
			v, err := readValue(r)
			if err != nil {
				return value.Value{}, err
			}
			pairs = append(pairs, value.Pair{Key: k, Value: v})
		}
		return value.NewMap(pairs), nil
	case tagSet:
		n := r.Uint32()
		items := make([]value.Value, 0, n)
		for i := uint32(0); i < n; i++ {
			v, err := readValue(r)
			if err != nil {
				return value.Value{}, err
			}
			items = append(items, v)
		}
		return value.NewSet(items), nil
	case tagError:
		name := r.String()
		message := r.String()
		hasStack := r.Bool()
		stack := ""
		if hasStack {
			stack = r.String()
		}
		return value.NewError(name, message, stack, hasStack), nil
	default:
		return value.Value{}, qerrors.CorruptSnapshot(nil, "snapshot: unknown value tag %d", tag)
	}
}
