package trampoline

import (
	"unsafe"

	"github.com/nativeffi/trampoline/internal/abi"
)

// Signature is the typed description of a target native function: its
// debug name, return type, ordered parameter types, and the address of
// the function itself. A Signature is immutable once constructed.
//
// The concrete type lives in internal/abi so that internal/compile's
// ABI generators can accept a *Signature without importing this
// package (which itself imports internal/compile to drive code
// generation); this package re-exports it as a type alias.
type Signature = abi.Signature

// NewSignature validates and constructs a Signature. params may be nil
// or empty for a zero-argument function. Every entry in params must be
// non-Void; returnType may be Void.
func NewSignature(name string, returnType TypeKind, params []TypeKind, target unsafe.Pointer) (*Signature, error) {
	return abi.NewSignature(name, returnType, params, target)
}
