package abi

import (
	"fmt"
	"unsafe"
)

// Signature is the typed description of a target native function: its
// debug name, return type, ordered parameter types, and the address of
// the function itself. A Signature is immutable once constructed; its
// ParamTypes are copied so a caller mutating the slice they passed in
// cannot reach back into a published Signature.
type Signature struct {
	name       string
	returnType TypeKind
	paramTypes []TypeKind
	target     unsafe.Pointer
}

// NewSignature validates and constructs a Signature. params may be nil
// or empty for a zero-argument function. Every entry in params must be
// non-Void; returnType may be Void.
func NewSignature(name string, returnType TypeKind, params []TypeKind, target unsafe.Pointer) (*Signature, error) {
	if target == nil {
		return nil, fmt.Errorf("trampoline: NewSignature %q: %w: nil target function pointer", name, ErrUnsupportedType)
	}
	for i, p := range params {
		if p.IsVoid() {
			return nil, fmt.Errorf("trampoline: NewSignature %q: %w: param %d is Void", name, ErrUnsupportedType, i)
		}
	}
	cp := make([]TypeKind, len(params))
	copy(cp, params)
	return &Signature{
		name:       name,
		returnType: returnType,
		paramTypes: cp,
		target:     target,
	}, nil
}

// Name returns the Signature's debug name.
func (s *Signature) Name() string { return s.name }

// ReturnType returns the Signature's declared return type.
func (s *Signature) ReturnType() TypeKind { return s.returnType }

// ParamCount returns the number of declared parameters.
func (s *Signature) ParamCount() int { return len(s.paramTypes) }

// ParamType returns the TypeKind of the i-th parameter.
func (s *Signature) ParamType(i int) TypeKind { return s.paramTypes[i] }

// ParamTypes returns a copy of the parameter type sequence; callers may
// freely mutate the result without affecting s.
func (s *Signature) ParamTypes() []TypeKind {
	cp := make([]TypeKind, len(s.paramTypes))
	copy(cp, s.paramTypes)
	return cp
}

// Target returns the address of the native function this Signature
// describes.
func (s *Signature) Target() unsafe.Pointer { return s.target }
