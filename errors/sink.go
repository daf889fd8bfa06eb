package errors

import (
	stderrors "errors"
	"os"
	"time"

	"go.uber.org/zap"
)

// Sink receives every fatal runtime error. Implementations must not return:
// execution never continues after a precondition violation.
type Sink interface {
	Fatal(err *Error)
}

// Fatal reports err to sink. If the sink returns anyway, Fatal panics so the
// failing operation still does not continue.
func Fatal(sink Sink, err *Error) {
	if sink != nil {
		sink.Fatal(err)
	}
	panic(err)
}

// AsFatal extracts the runtime error from a recovered panic value.
func AsFatal(recovered any) (*Error, bool) {
	switch v := recovered.(type) {
	case *Error:
		return v, true
	case error:
		var e *Error
		if stderrors.As(v, &e) {
			return e, true
		}
	}
	return nil, false
}

// PanicSink logs the error and panics with it. A supervisor can recover the
// *Error with AsFatal to report the code and subcode.
type PanicSink struct {
	Logger *zap.Logger
}

func (s PanicSink) Fatal(err *Error) {
	if s.Logger != nil {
		s.Logger.Error("fatal runtime error",
			zap.Int("code", int(err.Code)),
			zap.Int("subcode", err.Subcode),
			zap.Error(err))
	}
	panic(err)
}

// HaltSink parks the failing goroutine forever after reporting, like a device
// that stays in its failure indication. The parked goroutine waits on a
// ticker, so the process stays halted even when no other goroutine is alive.
type HaltSink struct {
	Logger *zap.Logger
	// Hook, when set, receives the code and subcode before the halt.
	Hook func(code Code, subcode int)
}

func (s HaltSink) Fatal(err *Error) {
	if s.Logger != nil {
		s.Logger.Error("runtime halted",
			zap.Int("code", int(err.Code)),
			zap.Int("subcode", err.Subcode),
			zap.Error(err))
	}
	if s.Hook != nil {
		s.Hook(err.Code, err.Subcode)
	}
	halt := time.NewTicker(time.Hour)
	for range halt.C {
	}
}

// ExitSink reports and terminates the process with Status.
type ExitSink struct {
	Logger *zap.Logger
	Status int
}

func (s ExitSink) Fatal(err *Error) {
	if s.Logger != nil {
		s.Logger.Error("runtime panic",
			zap.Int("status", s.Status),
			zap.Int("code", int(err.Code)),
			zap.Int("subcode", err.Subcode),
			zap.Error(err))
		_ = s.Logger.Sync()
	}
	os.Exit(s.Status)
}
