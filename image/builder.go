package image

import "fmt"

// Builder assembles an image.
type Builder struct {
	hdr   Header
	guest []byte
}

func NewBuilder() *Builder {
	return &Builder{hdr: Header{Version: Version, Main: NoMain}}
}

func (b *Builder) Globals(n uint16) *Builder {
	b.hdr.NumGlobals = n
	return b
}

// Main selects the entry run at start.
func (b *Builder) Main(startptr int) *Builder {
	b.hdr.Main = startptr
	return b
}

func (b *Builder) Hashes(template, program uint32) *Builder {
	b.hdr.TemplateHash = template
	b.hdr.ProgramHash = program
	return b
}

// Guest attaches a WebAssembly guest implementing the entries.
func (b *Builder) Guest(bin []byte) *Builder {
	b.guest = bin
	return b
}

// Build lays out markers at entries and validates the result.
func (b *Builder) Build(entries ...int) (*Image, error) {
	code, err := Layout(entries)
	if err != nil {
		return nil, fmt.Errorf("image: layout: %w", err)
	}
	img := &Image{Header: b.hdr, Code: code, Guest: b.guest}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}
