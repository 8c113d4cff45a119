package abi

import "runtime"

// ABIClass is the register class a TypeKind is allocated from when a
// trampoline marshals it: an integer/pointer register, a floating-point
// register, or a pair of adjacent integer registers for 128-bit values.
type ABIClass int

const (
	ClassInteger ABIClass = iota
	ClassFloat
	ClassIntegerPair
)

func (c ABIClass) String() string {
	switch c {
	case ClassInteger:
		return "integer"
	case ClassFloat:
		return "float"
	case ClassIntegerPair:
		return "integer-pair"
	default:
		return "unknown"
	}
}

// ExtendRule describes how a narrow value is widened into a full
// register when a trampoline loads it.
type ExtendRule int

const (
	ExtendNone ExtendRule = iota
	ExtendZero
	ExtendSign
)

// TypeKind is the closed enumeration of scalar categories a Signature's
// return type and parameter types may take.
type TypeKind int

const (
	Void TypeKind = iota
	Bool
	I8
	U8
	I16
	U16
	I32
	U32
	I64
	U64
	F32
	F64
	Pointer
	Wchar
	Size
	I128
	U128

	// Explicit-signed aliases. These collapse to the same ABI class and
	// width as their natural-sign counterparts; they exist so callers
	// describing a C signature with "signed char", "signed long", etc.
	// don't have to remember which the "natural" spelling is.
	SChar
	SShort
	SInt
	SLong
	SLLong
)

// Long and ULong are not separate enumerators: on every supported host
// C's "long" is represented by I64/U64 on SysV and AAPCS and by I32/U32
// on Win64. Callers that need "whatever size the platform's long is"
// should query LongKind() rather than hard-code a width.

// LongKind returns the TypeKind that matches C's "long" on the current
// host. Win64 treats long as 32-bit; SysV and AAPCS treat it as 64-bit.
func LongKind(unsigned bool) TypeKind {
	if runtime.GOOS == "windows" {
		if unsigned {
			return U32
		}
		return I32
	}
	if unsigned {
		return U64
	}
	return I64
}

// Class reports the ABI register class used to marshal this TypeKind.
func (t TypeKind) Class() ABIClass {
	switch t.canonical() {
	case F32, F64:
		return ClassFloat
	case I128, U128:
		return ClassIntegerPair
	default:
		return ClassInteger
	}
}

// canonical collapses the explicit-signed aliases onto the TypeKind they
// share an ABI class and width with.
func (t TypeKind) canonical() TypeKind {
	switch t {
	case SChar:
		return I8
	case SShort:
		return I16
	case SInt:
		return I32
	case SLong:
		return I64
	case SLLong:
		return I64
	default:
		return t
	}
}

// Size returns the width in bytes of t on the current host. Wchar and
// Size (size_t) are platform queries, not compile-time constants: Wchar
// is 2 bytes on Windows and 4 bytes elsewhere, and Size always matches
// the host pointer width.
func (t TypeKind) Size() int {
	switch t.canonical() {
	case Void:
		return 0
	case Bool, I8, U8:
		return 1
	case I16, U16:
		return 2
	case I32, U32, F32:
		return 4
	case I64, U64, F64, Pointer:
		return 8
	case I128, U128:
		return 16
	case Wchar:
		if runtime.GOOS == "windows" {
			return 2
		}
		return 4
	case Size:
		return 8
	default:
		return 0
	}
}

// Extend reports the zero/sign-extension rule applied when a value of
// this TypeKind is loaded into a full-width register.
func (t TypeKind) Extend() ExtendRule {
	switch t.canonical() {
	case Bool, U8, U16, U32, Wchar:
		return ExtendZero
	case I8, I16, I32:
		return ExtendSign
	default:
		return ExtendNone
	}
}

// IsVoid reports whether t is the Void sentinel.
func (t TypeKind) IsVoid() bool { return t == Void }

func (t TypeKind) String() string {
	switch t {
	case Void:
		return "void"
	case Bool:
		return "bool"
	case I8:
		return "i8"
	case U8:
		return "u8"
	case I16:
		return "i16"
	case U16:
		return "u16"
	case I32:
		return "i32"
	case U32:
		return "u32"
	case I64:
		return "i64"
	case U64:
		return "u64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case Pointer:
		return "pointer"
	case Wchar:
		return "wchar"
	case Size:
		return "size"
	case I128:
		return "i128"
	case U128:
		return "u128"
	case SChar:
		return "schar"
	case SShort:
		return "sshort"
	case SInt:
		return "sint"
	case SLong:
		return "slong"
	case SLLong:
		return "sllong"
	default:
		return "unknown"
	}
}
