package trampoline

import "github.com/nativeffi/trampoline/internal/abi"

// Error taxonomy. Construction-time failures (OutOfMemory,
// UnsupportedType, EncodingOverflow) are returned from NewTrampoline and
// never produce a usable Trampoline. Invocation-time failures
// (ArityMismatch, MissingReturnSlot) are collapsed to Invoke's boolean
// result and are never returned as an error value.
//
// The sentinels live in internal/abi so that internal/compile's ABI
// generators can return and compare them without importing this
// package.
var (
	// ErrOutOfMemory is returned when the host refused an executable
	// page allocation.
	ErrOutOfMemory = abi.ErrOutOfMemory

	// ErrUnsupportedType is returned when a generator cannot encode a
	// TypeKind for the host ABI, or when the host architecture/OS pair
	// has no registered generator at all.
	ErrUnsupportedType = abi.ErrUnsupportedType

	// ErrArityMismatch is the (logged) reason Invoke returns false when
	// the argument count does not match the Signature's parameter
	// count.
	ErrArityMismatch = abi.ErrArityMismatch

	// ErrMissingReturnSlot is the (logged) reason Invoke returns false
	// when a non-Void signature is invoked with a nil return slot.
	ErrMissingReturnSlot = abi.ErrMissingReturnSlot

	// ErrEncodingOverflow is returned when a generator wrote more bytes
	// than the allocated trampoline region can hold.
	ErrEncodingOverflow = abi.ErrEncodingOverflow
)
