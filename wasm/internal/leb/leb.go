// Package leb reads and writes the LEB128 integers and length-prefixed names
// of the WebAssembly binary format.
package leb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrOverflow = errors.New("leb128: overflow")
	ErrShort    = errors.New("unexpected end of input")
)

// Writer accumulates encoded bytes.
type Writer struct {
	buf bytes.Buffer
}

func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) Len() int { return w.buf.Len() }

func (w *Writer) Byte(b byte) { w.buf.WriteByte(b) }

func (w *Writer) Raw(data []byte) { w.buf.Write(data) }

// U32 writes an unsigned LEB128 value.
func (w *Writer) U32(v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

// S32 writes a signed LEB128 value.
func (w *Writer) S32(v int32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		w.buf.WriteByte(b)
		if done {
			return
		}
	}
}

// Name writes a length-prefixed string.
func (w *Writer) Name(s string) {
	w.U32(uint32(len(s)))
	w.buf.WriteString(s)
}

// U32LE writes a fixed four-byte little-endian value.
func (w *Writer) U32LE(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// Section writes a section id followed by its length-prefixed payload.
func (w *Writer) Section(id byte, payload []byte) {
	w.Byte(id)
	w.U32(uint32(len(payload)))
	w.Raw(payload)
}

// Reader decodes from an in-memory byte slice.
type Reader struct {
	data []byte
	pos  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) Pos() int { return r.pos }

func (r *Reader) Len() int { return len(r.data) - r.pos }

func (r *Reader) Byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, r.short()
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// Bytes returns the next n bytes without copying.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 || r.Len() < n {
		return nil, r.short()
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) U32() (uint32, error) {
	var v uint32
	for shift := uint(0); shift < 35; shift += 7 {
		b, err := r.Byte()
		if err != nil {
			return 0, err
		}
		v |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			if shift == 28 && b > 0x0f {
				return 0, ErrOverflow
			}
			return v, nil
		}
	}
	return 0, ErrOverflow
}

func (r *Reader) Name() (string, error) {
	n, err := r.U32()
	if err != nil {
		return "", err
	}
	b, err := r.Bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Reader) U32LE() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) short() error {
	return fmt.Errorf("offset %d: %w", r.pos, ErrShort)
}
