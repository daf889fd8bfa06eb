// Package event routes hardware events to registered actions.
//
// # Dispatch Table
//
// A Table maps an event identity, the pair (source, value), to one action.
// Registering replaces and releases the previous occupant. Value Any acts as
// a per-source wildcard:
//
//	table := event.NewTable(h, queue, logger)
//	table.Register(5, 100, onPress)   // exact
//	table.Register(5, event.Any, onAny) // every value of source 5
//
// Dispatching (5, 100) runs onPress and then onAny, both with argument 100.
// The table subscribes with its Bus once per distinct identity.
//
// # Queue
//
// Queue is an in-process Bus. Producers, typically an interrupt goroutine,
// Post events into a bounded lock-free ring; the main loop calls Pump to
// deliver them:
//
//	if err := queue.Post(event.Event{Source: 5, Value: 100}); iox.IsWouldBlock(err) {
//	    // ring full, event dropped
//	}
//	queue.Pump(ctx)
//
// Post is the only method that may be called from another goroutine.
package event
