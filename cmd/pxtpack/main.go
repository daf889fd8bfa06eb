package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/wippyai/pxt-runtime/image"
	"github.com/wippyai/pxt-runtime/wasm"
)

func main() {
	var (
		wasmFile = flag.String("wasm", "", "Path to guest wasm module")
		entries  = flag.String("entries", "", "Entry word offsets (comma-separated, default: from guest exports)")
		globals  = flag.Uint("globals", 0, "Number of globals")
		mainPtr  = flag.Int("main", image.NoMain, "Word offset of the main entry")
		template = flag.Uint("template-hash", 0, "Template hash to record")
		program  = flag.Uint("program-hash", 0, "Program hash to record")
		output   = flag.String("o", "", "Output image path")
		inspect  = flag.String("inspect", "", "Print an existing image and exit")
	)
	flag.Parse()

	if *inspect != "" {
		if err := show(*inspect); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *output == "" || (*wasmFile == "" && *entries == "") {
		fmt.Fprintln(os.Stderr, "Usage: pxtpack -wasm <guest.wasm> [-entries 0,2] [-globals N] [-main 0] -o <prog.img>")
		fmt.Fprintln(os.Stderr, "       pxtpack -inspect <prog.img>")
		os.Exit(1)
	}

	b := image.NewBuilder().
		Globals(uint16(*globals)).
		Main(*mainPtr).
		Hashes(uint32(*template), uint32(*program))
	if err := pack(b, *wasmFile, *entries, *output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func pack(b *image.Builder, wasmFile, entriesStr, output string) error {
	var offsets []int
	if wasmFile != "" {
		guest, err := os.ReadFile(wasmFile)
		if err != nil {
			return fmt.Errorf("read file: %w", err)
		}
		exports, err := wasm.ReadExports(guest)
		if err != nil {
			return fmt.Errorf("read exports: %w", err)
		}
		offsets = wasm.EntryOffsets(exports)
		b.Guest(guest)
	}

	if entriesStr != "" {
		var err error
		if offsets, err = parseOffsets(entriesStr); err != nil {
			return err
		}
	}

	img, err := b.Build(offsets...)
	if err != nil {
		return fmt.Errorf("build image: %w", err)
	}
	if err := image.Save(output, img); err != nil {
		return err
	}
	fmt.Printf("Wrote %s: %d code words, %d entries, %d guest bytes\n",
		output, len(img.Code), len(offsets), len(img.Guest))
	return nil
}

func parseOffsets(s string) ([]int, error) {
	var offsets []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("entry offset %q: %w", part, err)
		}
		offsets = append(offsets, n)
	}
	return offsets, nil
}

func show(path string) error {
	img, err := image.Load(path)
	if err != nil {
		return err
	}
	h := img.Header
	fmt.Printf("Image: %s\n", path)
	fmt.Printf("Version: %#x\n", h.Version)
	fmt.Printf("Globals: %d\n", h.NumGlobals)
	if h.Main == image.NoMain {
		fmt.Printf("Main: none\n")
	} else {
		fmt.Printf("Main: %d\n", h.Main)
	}
	fmt.Printf("Hashes: template %#08x, program %#08x\n", h.TemplateHash, h.ProgramHash)
	fmt.Printf("Code: %d words, entries %v\n", len(img.Code), img.Entries())
	if len(img.Guest) > 0 {
		exports, err := wasm.ReadExports(img.Guest)
		if err != nil {
			return fmt.Errorf("guest: %w", err)
		}
		fmt.Printf("Guest: %d bytes, %d exports\n", len(img.Guest), len(exports))
		for _, e := range exports {
			fmt.Printf("  %s\n", e.Name)
		}
	}
	if err := img.Validate(); err != nil {
		fmt.Printf("Invalid: %v\n", err)
	}
	return nil
}
