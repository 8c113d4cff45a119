package trampoline

import "unsafe"

// Argument is an opaque pointer to caller-owned storage of the right
// width for one parameter's TypeKind. Arguments do not own their
// pointee; the caller's storage must outlive the invocation.
type Argument = unsafe.Pointer

// ArgumentVector is the ordered sequence of Arguments passed to Invoke.
// Its order must match the target Signature's parameter order, and its
// length must equal the Signature's parameter count.
type ArgumentVector []Argument

// ReturnSlot is an opaque pointer to a caller-owned buffer large enough
// to hold the Signature's return type. It is required for any non-Void
// return and ignored for Void.
type ReturnSlot = unsafe.Pointer
