// Package errors provides the error taxonomy of the object runtime.
//
// Every runtime error is a precondition violation identified by a Code (the
// device error number) and a Subcode naming the call site:
//
//	OutOfBounds             (8)  index outside a fixed layout, capture written twice
//	ReferenceAlreadyDeleted (7)  increment of an object whose count is zero
//	InvalidBinaryHeader     (5)  closure entry marker or program version mismatch
//	SizeViolation           (9)  reflen/len relationship violated at construction
//	GuestTrap               (10) compiled guest code trapped
//
// Errors are built with the Builder or the convenience constructors:
//
//	err := errors.New(errors.OutOfBounds, errors.SubRecordLoad).
//		Site("record.load").
//		Detail("index %d", idx).
//		Build()
//
// None of them is recoverable. Components hand them to a Sink, which never
// returns: PanicSink panics with the *Error, HaltSink parks the goroutine and
// ExitSink terminates the process.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
