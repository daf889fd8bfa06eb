// Package resource stores host-side values that compiled programs hold by
// reference, such as managed strings, images or driver state.
//
// # Counted References
//
// A Store hands out *Ref values with a count of one:
//
//	store := resource.NewStore(resource.Options{Logger: logger})
//	ref := store.New(resource.TypeText, "hello")
//
//	h := heap.External(ref) // travels like any other handle
//	heap.Incr(h)
//	heap.Decr(h)
//	heap.Decr(h) // count reaches zero, value dropped
//
// When the count reaches zero the slot is freed, the value's Drop method runs
// if it implements Dropper, and observers receive EventDropped. Counting a
// dropped reference is fatal and reported through the store's sink.
//
// # Static Values
//
// Literals baked into the program image never die. NewStatic wraps them in a
// reference whose Incr and Decr do nothing.
//
// # Content
//
// Values implementing Byter, as well as plain strings and byte slices, expose
// their bytes through Contents. Collections with string semantics use this to
// compare external values against heap strings and buffers.
//
// # Observers
//
//	store.Subscribe(obs) // obs.OnResourceEvent(resource.Event)
//
// Events are delivered outside the store lock, so observers may call back
// into the store.
package resource
