// Package fiber runs actions as independent, cooperatively scheduled
// execution contexts.
//
// A Scheduler accepts work and a completion callback. Loop is the host
// implementation: spawned fibers queue in FIFO order and run to completion,
// one at a time, when the main loop calls RunPending. A fiber never preempts
// another.
//
// Bridge connects the heap to a scheduler. RunInBackground keeps the action
// alive for the whole run, whatever the caller does with its own reference:
//
//	bridge := fiber.NewBridge(h, loop, logger)
//	bridge.RunInBackground(action) // returns immediately
//	loop.RunPending(ctx)           // action runs, then is released
package fiber
