// Package pxtruntime is the object-memory and closure runtime for compiled
// microcontroller programs, hosted in Go.
//
// Compiled code manipulates reference-counted objects (records, closures,
// collections, buffers) through a small ABI, registers closures as event
// handlers and starts them in the background. This module implements that
// object model and runs closure bodies either as Go functions or as
// WebAssembly exports on wazero.
//
// # Architecture Overview
//
//	pxtruntime/
//	├── runtime/         Process-wide context: boots an image, pumps events
//	├── heap/            Handles, reference counting and the object variants
//	├── machine/         Closure executors: Go functions and wazero guests
//	├── event/           Event dispatch table and the lock-free event queue
//	├── fiber/           Cooperative scheduler for background actions
//	├── resource/        Host values with external reference counts
//	├── image/           Program image format (CBOR)
//	├── wasm/            Minimal WebAssembly module encoder
//	├── config/          TOML configuration
//	└── errors/          Error codes and fatal sinks
//
// # Quick Start
//
//	img, _ := image.Load("prog.img")
//	rt, err := runtime.New(ctx, img, runtime.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	rt.Start(ctx)
//	rt.Post(5, 100)
//	rt.Step(ctx)
//
// # Commands
//
//	pxtpack   builds an image from a guest module
//	pxtrun    runs an image, optionally with an interactive TUI
//
// # Error Handling
//
// Precondition violations are fatal: they carry a device error code and a
// subcode and are handed to an errors.Sink that never returns. Out-of-range
// collection reads are the exception; they are logged and execution goes on.
package pxtruntime
