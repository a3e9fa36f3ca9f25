// Package sframe classifies and decodes datagrams received from the host,
// and encodes outgoing requests.
//
// A received frame is one tag byte followed by an encoded payload.
// [LargeTag] and [SmallTag] select how the payload is decoded;
// a frame with any other tag is not an error worth reporting,
// and callers are expected to drop it silently.
//
// Outgoing requests carry no tag.
package sframe

import (
	"errors"
	"fmt"

	"github.com/stagehand-audio/stagehand/sproto"
	"github.com/stagehand-audio/stagehand/sproto/swire"
)

const (
	// Not using iota here, to avoid possibility of values changing across the wire.

	LargeTag byte = 0xD2
	SmallTag byte = 0xE1
)

// ErrEmpty is returned by [Decode] for a zero-length datagram.
var ErrEmpty = errors.New("empty frame")

// UnknownTagError is returned by [Decode] for a frame
// whose first byte is neither LargeTag nor SmallTag.
type UnknownTagError struct {
	Tag byte
}

func (e UnknownTagError) Error() string {
	return fmt.Sprintf("unknown frame tag 0x%02X", e.Tag)
}

// MalformedError is returned by [Decode] for a frame
// with a known tag whose payload failed to decode.
type MalformedError struct {
	Category sproto.Category

	// Length of the whole frame, including the tag.
	RawLen int

	Err error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s frame (%d bytes): %v", e.Category, e.RawLen, e.Err)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

// Tag returns the frame tag for category c.
// It panics for an unknown category.
func Tag(c sproto.Category) byte {
	switch c {
	case sproto.LargeCategory:
		return LargeTag
	case sproto.SmallCategory:
		return SmallTag
	default:
		panic(fmt.Errorf("BUG: no frame tag for %s", c))
	}
}

// Decode classifies b by its tag byte and decodes the payload.
//
// The returned error is [ErrEmpty], an [UnknownTagError],
// or a [*MalformedError].
// Decode does not retain b.
func Decode(b []byte) (sproto.Message, error) {
	if len(b) == 0 {
		return nil, ErrEmpty
	}

	var (
		msg sproto.Message
		err error
		c   sproto.Category
	)
	switch b[0] {
	case LargeTag:
		c = sproto.LargeCategory
		msg, err = sproto.DecodeLarge(b[1:])
	case SmallTag:
		c = sproto.SmallCategory
		msg, err = sproto.DecodeSmall(b[1:])
	default:
		return nil, UnknownTagError{Tag: b[0]}
	}

	if err != nil {
		return nil, &MalformedError{Category: c, RawLen: len(b), Err: err}
	}
	return msg, nil
}

// AppendFrame appends the tagged encoding of msg to dst.
// This is the host side of [Decode].
func AppendFrame(dst []byte, msg sproto.Message) ([]byte, error) {
	scratch := make([]byte, 64*1024)
	scratch[0] = Tag(msg.Category())

	var w swire.Writer
	w.Reset(scratch[1:])
	sproto.EncodeMessage(&w, msg)
	if err := w.Err(); err != nil {
		return dst, fmt.Errorf("failed to encode %s: %w", msg.Kind(), err)
	}

	return append(dst, scratch[:1+w.Len()]...), nil
}

// RequestEncoder encodes requests into a fixed internal buffer.
// The zero value is ready to use.
// A RequestEncoder is not safe for concurrent use.
type RequestEncoder struct {
	buf [sproto.MaxRequestSize]byte
	w   swire.Writer
}

// Encode returns the encoding of req.
// The returned slice aliases the encoder's buffer
// and is only valid until the next call to Encode.
func (e *RequestEncoder) Encode(req sproto.Request) ([]byte, error) {
	e.w.Reset(e.buf[:])
	sproto.EncodeRequest(&e.w, req)
	if err := e.w.Err(); err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", req.Kind(), err)
	}
	return e.w.Bytes(), nil
}
