// Package runtime wires the object heap, the closure executor, the event
// table and the background scheduler into one process-wide context.
//
// # Quick Start
//
//	img, err := image.Load("blink.img")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rt, err := runtime.New(ctx, img, runtime.Options{Logger: logger})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	rt.Start(ctx)            // runs the main entry
//	rt.Post(5, 100)          // from any single producer goroutine
//	err = rt.Run(ctx)        // pumps events and fibers until ctx ends
//
// # Executors
//
// Images carrying a WebAssembly guest run it on wazero, one export per
// closure entry. Images without a guest need Options.Machine, typically a
// machine.Funcs with Go bodies.
//
// # Thread Safety
//
// Everything except Post runs on the goroutine that calls Start, Step and
// Run. Post may be called from one other goroutine.
package runtime
