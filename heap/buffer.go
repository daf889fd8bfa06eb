package heap

import (
	"bytes"
	"fmt"
	"io"
)

// Buffer is a raw byte sequence for binary data exchange. It owns no
// references.
type Buffer struct {
	refObject
	data []byte
}

// MkBuffer allocates a zeroed buffer of n bytes.
func (h *Heap) MkBuffer(n int) *Buffer {
	if n < 0 {
		n = 0
	}
	b := &Buffer{data: make([]byte, n)}
	h.track(b)
	return b
}

// BufferOf allocates a buffer holding a copy of data.
func (h *Heap) BufferOf(data []byte) *Buffer {
	b := &Buffer{data: bytes.Clone(data)}
	if b.data == nil {
		b.data = []byte{}
	}
	h.track(b)
	return b
}

func (b *Buffer) Kind() Kind { return KindBuffer }

func (b *Buffer) Len() int { return len(b.data) }

// Bytes returns the backing storage. Writes through it are visible to the
// buffer.
func (b *Buffer) Bytes() []byte { return b.data }

func (b *Buffer) Contents() ([]byte, bool) { return b.data, true }

// At returns byte i, or 0 when i is out of range.
func (b *Buffer) At(i int) byte {
	if i < 0 || i >= len(b.data) {
		return 0
	}
	return b.data[i]
}

// Set writes byte i. Out of range writes are ignored.
func (b *Buffer) Set(i int, v byte) {
	if i < 0 || i >= len(b.data) {
		return
	}
	b.data[i] = v
}

func (b *Buffer) Print(w io.Writer) {
	var first byte
	if len(b.data) > 0 {
		first = b.data[0]
	}
	fmt.Fprintf(w, "buffer#%d r=%d size=%d [%#x, ...]\n", b.id, b.refcnt, len(b.data), first)
}

func (b *Buffer) Equals(other Object) bool {
	return Object(b) == other
}

func (b *Buffer) destroy() {
	b.data = nil
}

// String is an immutable byte string. Unlike the other variants it is equal
// to any String with the same content.
type String struct {
	refObject
	data []byte
}

// MkString allocates a string.
func (h *Heap) MkString(s string) *String {
	str := &String{data: []byte(s)}
	h.track(str)
	return str
}

func (s *String) Kind() Kind { return KindString }

func (s *String) Len() int { return len(s.data) }

func (s *String) String() string { return string(s.data) }

func (s *String) Contents() ([]byte, bool) { return s.data, true }

func (s *String) Print(w io.Writer) {
	fmt.Fprintf(w, "string#%d r=%d %q\n", s.id, s.refcnt, s.data)
}

func (s *String) Equals(other Object) bool {
	o, ok := other.(*String)
	return ok && bytes.Equal(s.data, o.data)
}

func (s *String) destroy() {
	s.data = nil
}
