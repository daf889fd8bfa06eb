// Package machine provides executors for compiled closure bodies.
//
// The heap hands every closure invocation to a heap.Machine together with
// the tagged entry, the invoked closure and a view of its captures. Two
// executors are provided.
//
// # Funcs
//
// Funcs maps entries to Go functions. Native hosts and tests use it:
//
//	m := machine.NewFuncs(nil)
//	m.Define(4, func(ctx context.Context, self heap.Handle, env heap.Captures, arg int32) int32 {
//	    return arg + int32(env.Word(0))
//	})
//	h.SetMachine(m)
//
// # Wasm
//
// Wasm runs closure bodies compiled to a WebAssembly guest with wazero. The
// guest exports one function per entry, named wasm.EntryName(offset), with
// signature (self, env, arg i32) -> i32. Self and env are handle words; both
// are 0 for closures without captures.
//
// The guest reaches the heap through the "pxt" host module. Handles cross
// the boundary as words (slot<<1 | tag, 0 for null) resolved by a Words
// table. Calling convention matches the heap: functions that return a
// handle return a new reference, functions that store one take over the
// guest's reference.
//
// Fatal errors raised inside host functions propagate unchanged. Any other
// trap in the guest is reported through the heap's sink as GuestTrap.
package machine
