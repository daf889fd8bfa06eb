package image

import (
	"fmt"
	"os"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/wippyai/pxt-runtime/errors"
	"github.com/wippyai/pxt-runtime/heap"
)

// Version is the only runtime version images may declare.
const Version uint16 = 0x4208

// NoMain marks an image without a main entry.
const NoMain = -1

// Header is the fixed part of an image.
type Header struct {
	Version    uint16 `cbor:"1,keyasint"`
	NumGlobals uint16 `cbor:"2,keyasint"`
	// Main is the word offset of the entry marker run at start, or NoMain.
	Main int `cbor:"3,keyasint"`
	// TemplateHash and ProgramHash are carried for tooling; they are not
	// checked against flash contents.
	TemplateHash uint32 `cbor:"4,keyasint"`
	ProgramHash  uint32 `cbor:"5,keyasint"`
}

// Image is a loadable program.
type Image struct {
	Header Header   `cbor:"1,keyasint"`
	Code   []uint16 `cbor:"2,keyasint"`
	Guest  []byte   `cbor:"3,keyasint,omitempty"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Encode serializes img.
func Encode(img *Image) ([]byte, error) {
	return encMode.Marshal(img)
}

// Decode deserializes an image. It does not validate it.
func Decode(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("image: decode: %w", err)
	}
	return &img, nil
}

// Load reads and decodes the image at path.
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read image %s: %w", path, err)
	}
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Save encodes img to path.
func Save(path string, img *Image) error {
	data, err := Encode(img)
	if err != nil {
		return fmt.Errorf("image: encode: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the version and the main entry marker. Failures are
// *errors.Error values with code InvalidBinaryHeader.
func (img *Image) Validate() error {
	if img.Header.Version != Version {
		return errors.New(errors.InvalidBinaryHeader, errors.SubBadVersion).
			Site("image.validate").
			Value(img.Header.Version).
			Detail("runtime version %#x, want %#x", img.Header.Version, Version).
			Build()
	}
	if m := img.Header.Main; m != NoMain {
		if m < 0 || m >= len(img.Code) || img.Code[m] != heap.MarkerFirst {
			return errors.BadHeader("image.validate", errors.SubMarkerFirst,
				fmt.Sprintf("main at word %d has no entry marker", m))
		}
		if m+1 >= len(img.Code) || img.Code[m+1] != heap.MarkerSecond {
			return errors.BadHeader("image.validate", errors.SubMarkerSecond,
				fmt.Sprintf("main at word %d has no entry marker", m))
		}
	}
	return nil
}

// Entries returns the word offsets of every entry marker in the code stream.
func (img *Image) Entries() []int {
	var offsets []int
	for i := 0; i+1 < len(img.Code); i++ {
		if img.Code[i] == heap.MarkerFirst && img.Code[i+1] == heap.MarkerSecond {
			offsets = append(offsets, i)
			i++
		}
	}
	return offsets
}

// Layout returns the shortest code stream with an entry marker at each word
// offset. Offsets must be non-negative and at least two words apart.
func Layout(offsets []int) ([]uint16, error) {
	sorted := append([]int(nil), offsets...)
	sort.Ints(sorted)

	size := 0
	for i, off := range sorted {
		if off < 0 {
			return nil, fmt.Errorf("entry offset %d is negative", off)
		}
		if i > 0 && off-sorted[i-1] < 2 {
			return nil, fmt.Errorf("entry offsets %d and %d overlap", sorted[i-1], off)
		}
		size = off + 2
	}

	code := make([]uint16, size)
	for _, off := range sorted {
		code[off] = heap.MarkerFirst
		code[off+1] = heap.MarkerSecond
	}
	return code, nil
}
