// Package image defines the program image a runtime boots from.
//
// An image carries the version header, the code stream holding closure entry
// markers, and optionally a WebAssembly guest with one export per entry:
//
//	img, err := image.NewBuilder().
//		Globals(4).
//		Main(0).
//		Guest(bin).
//		Build(0, 2)
//
// Images are stored as canonical CBOR, so equal images encode to equal bytes.
package image
