package errors

import (
	"fmt"
	"strings"
)

// Code is the device error code reported to the host.
type Code int

const (
	InvalidBinaryHeader     Code = 5
	ReferenceAlreadyDeleted Code = 7
	OutOfBounds             Code = 8
	SizeViolation           Code = 9
	GuestTrap               Code = 10
)

func (c Code) String() string {
	switch c {
	case InvalidBinaryHeader:
		return "invalid_binary_header"
	case ReferenceAlreadyDeleted:
		return "reference_already_deleted"
	case OutOfBounds:
		return "out_of_bounds"
	case SizeViolation:
		return "size_violation"
	case GuestTrap:
		return "guest_trap"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Subcodes distinguish the call site that raised a Code.
const (
	SubSizeRefLen   = 1
	SubSizeTotalLen = 2
	SubRefCountMax  = 7
	SubWordSlots    = 8

	SubMarkerFirst  = 3
	SubMarkerSecond = 4
	SubMissingEntry = 5
	SubBadVersion   = 6

	SubRecordLoad     = 1
	SubRecordLoadRef  = 2
	SubRecordStore    = 3
	SubRecordStoreRef = 4

	SubIncrDeleted = 0
	SubDecrDeleted = 1
	SubStaleWord   = 2

	SubCaptureBounds   = 10
	SubCaptureAssigned = 11
	SubCaptureKind     = 12

	SubCollectionGet = 20

	SubGlobalIndex = 30

	SubGuestKind  = 1
	SubGuestPanic = 2
)

// Error is the structured error raised for every runtime invariant violation.
type Error struct {
	Value   any
	Cause   error
	Site    string
	Detail  string
	Code    Code
	Subcode int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString("error ")
	b.WriteString(fmt.Sprint(int(e.Code)))
	b.WriteString(" [")
	b.WriteString(fmt.Sprint(e.Subcode))
	b.WriteString("] ")
	b.WriteString(e.Code.String())

	if e.Site != "" {
		b.WriteString(" at ")
		b.WriteString(e.Site)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target has the same code. A target with a non-zero
// Subcode also has to match the subcode.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Code != t.Code {
		return false
	}
	return t.Subcode == 0 || e.Subcode == t.Subcode
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(code Code, subcode int) *Builder {
	return &Builder{
		err: Error{
			Code:    code,
			Subcode: subcode,
		},
	}
}

// Site names the operation that failed
func (b *Builder) Site(site string) *Builder {
	b.err.Site = site
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// IndexOutOfBounds creates an out of bounds error for an index outside [lo, hi).
func IndexOutOfBounds(site string, subcode, index, lo, hi int) *Error {
	return &Error{
		Code:    OutOfBounds,
		Subcode: subcode,
		Site:    site,
		Detail:  fmt.Sprintf("index %d outside [%d, %d)", index, lo, hi),
		Value:   index,
	}
}

// AlreadyAssigned creates the error raised when a capture slot is written twice.
func AlreadyAssigned(site string, index int) *Error {
	return &Error{
		Code:    OutOfBounds,
		Subcode: SubCaptureAssigned,
		Site:    site,
		Detail:  fmt.Sprintf("capture %d already assigned", index),
		Value:   index,
	}
}

// Deleted creates a use-after-free error.
func Deleted(site string, subcode int) *Error {
	return &Error{
		Code:    ReferenceAlreadyDeleted,
		Subcode: subcode,
		Site:    site,
		Detail:  "reference count already zero",
	}
}

// BadHeader creates an invalid binary header error.
func BadHeader(site string, subcode int, detail string) *Error {
	return &Error{
		Code:    InvalidBinaryHeader,
		Subcode: subcode,
		Site:    site,
		Detail:  detail,
	}
}

// BadSize creates a size violation for a reflen/len pair.
func BadSize(site string, subcode, reflen, total int) *Error {
	return &Error{
		Code:    SizeViolation,
		Subcode: subcode,
		Site:    site,
		Detail:  fmt.Sprintf("reflen %d, len %d (need 0 <= reflen <= len <= 255)", reflen, total),
	}
}

// Trap wraps a trap raised by guest code.
func Trap(site string, cause error) *Error {
	return &Error{
		Code:   GuestTrap,
		Site:   site,
		Detail: "guest trapped",
		Cause:  cause,
	}
}
