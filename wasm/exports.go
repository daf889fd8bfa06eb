package wasm

import (
	"errors"
	"fmt"
	"sort"

	"github.com/wippyai/pxt-runtime/wasm/internal/leb"
)

var (
	ErrInvalidMagic   = errors.New("invalid wasm magic number")
	ErrInvalidVersion = errors.New("unsupported wasm version")
)

// ReadExports scans a binary module and returns its exports. Other sections
// are skipped without being validated.
func ReadExports(bin []byte) ([]Export, error) {
	r := leb.NewReader(bin)
	magic, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}
	version, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, version)
	}

	for r.Len() > 0 {
		id, err := r.Byte()
		if err != nil {
			return nil, err
		}
		size, err := r.U32()
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", id, err)
		}
		payload, err := r.Bytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", id, err)
		}
		if id == SectionExport {
			exports, err := readExportSection(leb.NewReader(payload))
			if err != nil {
				return nil, fmt.Errorf("export section: %w", err)
			}
			return exports, nil
		}
	}
	return nil, nil
}

func readExportSection(r *leb.Reader) ([]Export, error) {
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	exports := make([]Export, 0, n)
	for i := uint32(0); i < n; i++ {
		name, err := r.Name()
		if err != nil {
			return nil, err
		}
		kind, err := r.Byte()
		if err != nil {
			return nil, err
		}
		idx, err := r.U32()
		if err != nil {
			return nil, err
		}
		exports = append(exports, Export{Name: name, Kind: kind, Idx: idx})
	}
	return exports, nil
}

// EntryOffsets returns the sorted word offsets of every exported closure
// body.
func EntryOffsets(exports []Export) []int {
	var offsets []int
	for _, e := range exports {
		if e.Kind != KindFunc {
			continue
		}
		if off, ok := ParseEntryName(e.Name); ok {
			offsets = append(offsets, off)
		}
	}
	sort.Ints(offsets)
	return offsets
}
