package abi

import "errors"

// Error taxonomy. Construction-time failures (OutOfMemory,
// UnsupportedType, EncodingOverflow) are returned from NewTrampoline and
// never produce a usable Trampoline. Invocation-time failures
// (ArityMismatch, MissingReturnSlot) are collapsed to Invoke's boolean
// result and are never returned as an error value.
var (
	// ErrOutOfMemory is returned when the host refused an executable
	// page allocation.
	ErrOutOfMemory = errors.New("trampoline: out of memory")

	// ErrUnsupportedType is returned when a generator cannot encode a
	// TypeKind for the host ABI, or when the host architecture/OS pair
	// has no registered generator at all.
	ErrUnsupportedType = errors.New("trampoline: unsupported type")

	// ErrArityMismatch is the (logged) reason Invoke returns false
	// when the argument count does not match the Signature's parameter
	// count.
	ErrArityMismatch = errors.New("trampoline: arity mismatch")

	// ErrMissingReturnSlot is the (logged) reason Invoke returns false
	// when a non-Void signature is invoked with a nil return slot.
	ErrMissingReturnSlot = errors.New("trampoline: missing return slot")

	// ErrEncodingOverflow is returned when a generator wrote more bytes
	// than the allocated trampoline region can hold.
	ErrEncodingOverflow = errors.New("trampoline: encoding overflow")
)
