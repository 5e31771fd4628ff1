// Package canonicalpb implements the wire codec for the canonical
// profile schema. There is no publicly defined .proto for this
// bespoke schema (unlike the legacy pprof side, which is read/written
// through github.com/google/pprof/profile), so this package hand-rolls
// a small protobuf-shaped codec (varint-tagged, length-delimited
// messages), following the same "skip full protobuf codegen, decode
// the wire format directly" approach github.com/google/pprof/profile
// itself takes internally. Field tags are fixed constants (see
// codec.go) so the encoding is stable across versions of this
// package.
package canonicalpb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/dennwc/varint"
)

const (
	wireVarint = 0
	wireBytes  = 2
)

type writer struct {
	buf bytes.Buffer
}

func (w *writer) tag(field int, wireType int) {
	var tmp [binaryMaxVarintLen]byte
	n := binary.PutUvarint(tmp[:], uint64(field)<<3|uint64(wireType))
	w.buf.Write(tmp[:n])
}

func (w *writer) uvarint(v uint64) {
	var tmp [binaryMaxVarintLen]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf.Write(tmp[:n])
}

func (w *writer) svarint(v int64) {
	w.uvarint(zigzagEncode(v))
}

func (w *writer) uint32Field(field int, v uint32) {
	if v == 0 {
		return
	}
	w.tag(field, wireVarint)
	w.uvarint(uint64(v))
}

func (w *writer) uint64Field(field int, v uint64) {
	if v == 0 {
		return
	}
	w.tag(field, wireVarint)
	w.uvarint(v)
}

func (w *writer) int64Field(field int, v int64) {
	if v == 0 {
		return
	}
	w.tag(field, wireVarint)
	w.svarint(v)
}

func (w *writer) float64Field(field int, v float64) {
	if v == 0 {
		return
	}
	w.tag(field, wireBytes)
	var tmp [8]byte
	putFloat64(tmp[:], v)
	w.uvarint(uint64(len(tmp)))
	w.buf.Write(tmp[:])
}

func (w *writer) bytesField(field int, b []byte) {
	if len(b) == 0 {
		return
	}
	w.tag(field, wireBytes)
	w.uvarint(uint64(len(b)))
	w.buf.Write(b)
}

func (w *writer) message(field int, sub *writer) {
	b := sub.buf.Bytes()
	if len(b) == 0 {
		return
	}
	w.tag(field, wireBytes)
	w.uvarint(uint64(len(b)))
	w.buf.Write(b)
}

const binaryMaxVarintLen = 10

func zigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func zigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

func putFloat64(b []byte, f float64) {
	bits := math.Float64bits(f)
	for i := 0; i < 8; i++ {
		b[i] = byte(bits >> (8 * i))
	}
}

func getFloat64(b []byte) float64 {
	var bits uint64
	for i := 0; i < 8; i++ {
		bits |= uint64(b[i]) << (8 * i)
	}
	return math.Float64frombits(bits)
}

// reader parses a single nested message's worth of tagged fields.
type reader struct {
	data []byte
}

type field struct {
	num      int
	wireType int
	uvarint  uint64
	bytes    []byte
}

func (r *reader) next() (field, bool, error) {
	if len(r.data) == 0 {
		return field{}, false, nil
	}
	tag, n := varint.Uvarint(r.data)
	if n <= 0 {
		return field{}, false, fmt.Errorf("canonicalpb: malformed tag")
	}
	r.data = r.data[n:]
	f := field{num: int(tag >> 3), wireType: int(tag & 0x7)}
	switch f.wireType {
	case wireVarint:
		v, n := varint.Uvarint(r.data)
		if n <= 0 {
			return field{}, false, fmt.Errorf("canonicalpb: malformed varint")
		}
		f.uvarint = v
		r.data = r.data[n:]
	case wireBytes:
		ln, n := varint.Uvarint(r.data)
		if n <= 0 || uint64(len(r.data)-n) < ln {
			return field{}, false, fmt.Errorf("canonicalpb: malformed length-delimited field")
		}
		r.data = r.data[n:]
		f.bytes = r.data[:ln]
		r.data = r.data[ln:]
	default:
		return field{}, false, fmt.Errorf("canonicalpb: unsupported wire type %d", f.wireType)
	}
	return f, true, nil
}
