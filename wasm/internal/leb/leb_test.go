package leb

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestU32_RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 255, 16384, 624485, math.MaxUint32} {
		var w Writer
		w.U32(v)
		got, err := NewReader(w.Bytes()).U32()
		if err != nil || got != v {
			t.Fatalf("U32(%d) = %d, %v", v, got, err)
		}
	}
}

func TestS32_Encoding(t *testing.T) {
	tests := []struct {
		v    int32
		want []byte
	}{
		{0, []byte{0x00}},
		{-1, []byte{0x7F}},
		{63, []byte{0x3F}},
		{64, []byte{0xC0, 0x00}},
		{-64, []byte{0x40}},
		{-65, []byte{0xBF, 0x7F}},
		{-123456, []byte{0xC0, 0xBB, 0x78}},
	}
	for _, tt := range tests {
		var w Writer
		w.S32(tt.v)
		if !bytes.Equal(w.Bytes(), tt.want) {
			t.Errorf("S32(%d) = % x, want % x", tt.v, w.Bytes(), tt.want)
		}
	}
}

func TestReader_Errors(t *testing.T) {
	if _, err := NewReader([]byte{0x80}).U32(); !errors.Is(err, ErrShort) {
		t.Fatalf("err = %v", err)
	}
	if _, err := NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x7F}).U32(); !errors.Is(err, ErrOverflow) {
		t.Fatalf("err = %v", err)
	}
	if _, err := NewReader([]byte{0x05, 'a'}).Name(); !errors.Is(err, ErrShort) {
		t.Fatalf("err = %v", err)
	}
}

func TestName_RoundTrip(t *testing.T) {
	var w Writer
	w.Name("pxt")
	w.U32LE(0xDEADBEEF)
	r := NewReader(w.Bytes())

	name, err := r.Name()
	if err != nil || name != "pxt" {
		t.Fatalf("Name = %q, %v", name, err)
	}
	v, err := r.U32LE()
	if err != nil || v != 0xDEADBEEF {
		t.Fatalf("U32LE = %#x, %v", v, err)
	}
	if r.Len() != 0 {
		t.Fatalf("%d bytes left", r.Len())
	}
}
