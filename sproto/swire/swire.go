// Package swire implements the compact binary encoding used on the wire
// between the client and the host.
//
// The encoding matches the host's serializer:
// unsigned integers are LEB128 varints,
// signed integers are zigzag varints,
// booleans are a single 0 or 1 byte,
// 32-bit floats are 4 little-endian bytes,
// and strings and sequences are a varint length followed by the elements.
// Fixed-size arrays carry no length prefix.
// Enumerations are a varint variant index followed by the variant's fields.
//
// Both [Writer] and [Reader] carry a sticky error,
// so encoders and decoders can issue a run of calls
// and check [Writer.Err] or [Reader.Err] once at the end.
package swire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrBufferFull is reported by a Writer whose fixed buffer
	// cannot hold the next value.
	ErrBufferFull = errors.New("swire: buffer full")

	// ErrShortBuffer is reported by a Reader that ran out of input.
	ErrShortBuffer = errors.New("swire: unexpected end of input")

	// ErrVarintOverflow is reported for a varint that does not fit
	// the requested integer width.
	ErrVarintOverflow = errors.New("swire: varint overflows target width")

	// ErrInvalidBool is reported for a boolean byte other than 0 or 1.
	ErrInvalidBool = errors.New("swire: invalid boolean byte")
)

// LengthLimitError is reported when a length prefix exceeds
// the limit the caller allowed for that field.
type LengthLimitError struct {
	Got, Max uint64
}

func (e LengthLimitError) Error() string {
	return fmt.Sprintf("swire: length %d exceeds limit %d", e.Got, e.Max)
}

// Writer appends encoded values into a fixed-capacity byte slice.
// It never grows the slice, so encoding through a Writer
// does not allocate.
type Writer struct {
	buf []byte
	n   int
	err error
}

// Reset points w at buf, discarding any previous state.
// Writes fill buf from index zero up to len(buf).
func (w *Writer) Reset(buf []byte) {
	w.buf = buf
	w.n = 0
	w.err = nil
}

// Bytes returns the bytes written so far.
// The returned slice aliases the buffer given to Reset.
func (w *Writer) Bytes() []byte {
	return w.buf[:w.n]
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return w.n
}

// Err returns the first error encountered, if any.
func (w *Writer) Err() error {
	return w.err
}

// claim reserves sz bytes and returns the offset to write at,
// or -1 if the buffer is exhausted or an earlier write failed.
func (w *Writer) claim(sz int) int {
	if w.err != nil {
		return -1
	}
	if len(w.buf)-w.n < sz {
		w.err = ErrBufferFull
		return -1
	}
	off := w.n
	w.n += sz
	return off
}

// WriteUvarint writes v as an unsigned LEB128 varint.
func (w *Writer) WriteUvarint(v uint64) {
	off := w.claim(UvarintSize(v))
	if off < 0 {
		return
	}
	binary.PutUvarint(w.buf[off:], v)
}

// WriteVarint writes v as a zigzag-encoded varint.
func (w *Writer) WriteVarint(v int64) {
	w.WriteUvarint(uint64(v<<1) ^ uint64(v>>63))
}

// WriteUint8 writes v as a single raw byte.
func (w *Writer) WriteUint8(v uint8) {
	off := w.claim(1)
	if off < 0 {
		return
	}
	w.buf[off] = v
}

// WriteBool writes v as a 0 or 1 byte.
func (w *Writer) WriteBool(v bool) {
	var b uint8
	if v {
		b = 1
	}
	w.WriteUint8(b)
}

// WriteFloat32 writes v as 4 little-endian bytes.
func (w *Writer) WriteFloat32(v float32) {
	off := w.claim(4)
	if off < 0 {
		return
	}
	binary.LittleEndian.PutUint32(w.buf[off:], math.Float32bits(v))
}

// WriteFixed writes p with no length prefix.
func (w *Writer) WriteFixed(p []byte) {
	off := w.claim(len(p))
	if off < 0 {
		return
	}
	copy(w.buf[off:], p)
}

// WriteString writes s as a varint length followed by its bytes.
func (w *Writer) WriteString(s string) {
	w.WriteUvarint(uint64(len(s)))
	off := w.claim(len(s))
	if off < 0 {
		return
	}
	copy(w.buf[off:], s)
}

// UvarintSize returns the number of bytes WriteUvarint uses for v.
func UvarintSize(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// StringSize returns the number of bytes WriteString uses for a string of n bytes.
func StringSize(n int) int {
	return UvarintSize(uint64(n)) + n
}

// Reader decodes values from a byte slice without copying it.
// Trailing bytes after the last value read are ignored.
type Reader struct {
	data []byte
	off  int
	err  error
}

// NewReader returns a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Err returns the first error encountered, if any.
func (r *Reader) Err() error {
	return r.err
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.off
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Fail records err as the Reader's error if none is set yet.
// Decoders use it to report semantic problems,
// such as an unknown variant index,
// through the same sticky error as framing problems.
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.Remaining() < n {
		r.err = ErrShortBuffer
		return nil
	}
	p := r.data[r.off : r.off+n]
	r.off += n
	return p
}

// ReadUvarint reads an unsigned LEB128 varint of up to 64 bits.
func (r *Reader) ReadUvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.data[r.off:])
	switch {
	case n == 0:
		r.err = ErrShortBuffer
		return 0
	case n < 0:
		r.err = ErrVarintOverflow
		return 0
	}
	r.off += n
	return v
}

// ReadUvarintMax reads an unsigned varint and fails
// with ErrVarintOverflow if it exceeds max.
func (r *Reader) ReadUvarintMax(max uint64) uint64 {
	v := r.ReadUvarint()
	if v > max {
		r.Fail(ErrVarintOverflow)
		return 0
	}
	return v
}

// ReadUint16 reads a varint that must fit in 16 bits.
func (r *Reader) ReadUint16() uint16 {
	return uint16(r.ReadUvarintMax(math.MaxUint16))
}

// ReadUint32 reads a varint that must fit in 32 bits.
func (r *Reader) ReadUint32() uint32 {
	return uint32(r.ReadUvarintMax(math.MaxUint32))
}

// ReadVarint reads a zigzag-encoded varint.
func (r *Reader) ReadVarint() int64 {
	u := r.ReadUvarint()
	return int64(u>>1) ^ -int64(u&1)
}

// ReadUint8 reads a single raw byte.
func (r *Reader) ReadUint8() uint8 {
	p := r.take(1)
	if p == nil {
		return 0
	}
	return p[0]
}

// ReadBool reads a 0 or 1 byte.
func (r *Reader) ReadBool() bool {
	p := r.take(1)
	if p == nil {
		return false
	}
	switch p[0] {
	case 0:
		return false
	case 1:
		return true
	default:
		r.Fail(ErrInvalidBool)
		return false
	}
}

// ReadFloat32 reads 4 little-endian bytes as a float32.
func (r *Reader) ReadFloat32() float32 {
	p := r.take(4)
	if p == nil {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(p))
}

// ReadFixed reads exactly len(dst) bytes into dst.
func (r *Reader) ReadFixed(dst []byte) {
	p := r.take(len(dst))
	if p == nil {
		return
	}
	copy(dst, p)
}

// ReadLength reads a varint length prefix,
// failing with a LengthLimitError if it exceeds max.
// The caller then reads that many elements.
func (r *Reader) ReadLength(max int) int {
	n := r.ReadUvarint()
	if r.err != nil {
		return 0
	}
	if n > uint64(max) {
		r.Fail(LengthLimitError{Got: n, Max: uint64(max)})
		return 0
	}
	return int(n)
}

// ReadString reads a length-prefixed string of at most max bytes.
// The returned string holds its own copy of the data.
func (r *Reader) ReadString(max int) string {
	n := r.ReadLength(max)
	p := r.take(n)
	if p == nil {
		return ""
	}
	return string(p)
}

// Fail records err as the Writer's error if none is set yet.
// Encoders use it to reject values the wire format cannot carry.
func (w *Writer) Fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// WriteBoundedString writes s like WriteString,
// but fails with a LengthLimitError if s is longer than max bytes.
func (w *Writer) WriteBoundedString(s string, max int) {
	if len(s) > max {
		w.Fail(LengthLimitError{Got: uint64(len(s)), Max: uint64(max)})
		return
	}
	w.WriteString(s)
}
