// Package wasm assembles the guest modules that carry compiled closure
// bodies, and reads back their exports.
//
// Only the subset the runtime needs is modelled: function types, function
// imports, one optional memory, exports and function bodies.
//
// # Building
//
//	m := &wasm.Module{}
//	incr := m.ImportFunc("pxt", "incr", wasm.FuncType{Params: []wasm.ValType{wasm.I32}})
//	body := wasm.NewCode().LocalGet(2).I32Const(1).Op(wasm.OpI32Add)
//	fn := m.AddFunc(wasm.EntryType, body)
//	m.ExportFunc(wasm.EntryName(4), fn)
//	bin := m.Encode()
//
// Imports occupy the low function indexes, so every import must be added
// before the first function.
//
// # Reading
//
//	exports, err := wasm.ReadExports(bin)
//	offsets := wasm.EntryOffsets(exports)
package wasm
