package trampoline

import "github.com/nativeffi/trampoline/internal/abi"

// ABIClass is the register class a TypeKind is allocated from when a
// trampoline marshals it: an integer/pointer register, a floating-point
// register, or a pair of adjacent integer registers for 128-bit values.
type ABIClass = abi.ABIClass

const (
	ClassInteger     = abi.ClassInteger
	ClassFloat       = abi.ClassFloat
	ClassIntegerPair = abi.ClassIntegerPair
)

// ExtendRule describes how a narrow value is widened into a full
// register when a trampoline loads it.
type ExtendRule = abi.ExtendRule

const (
	ExtendNone = abi.ExtendNone
	ExtendZero = abi.ExtendZero
	ExtendSign = abi.ExtendSign
)

// TypeKind is the closed enumeration of scalar categories a Signature's
// return type and parameter types may take. The enumerators and their
// ABI behavior live in internal/abi so that internal/compile's ABI
// generators can depend on the type system without importing this
// package and creating an import cycle; this package re-exports them
// as the public surface.
type TypeKind = abi.TypeKind

const (
	Void    = abi.Void
	Bool    = abi.Bool
	I8      = abi.I8
	U8      = abi.U8
	I16     = abi.I16
	U16     = abi.U16
	I32     = abi.I32
	U32     = abi.U32
	I64     = abi.I64
	U64     = abi.U64
	F32     = abi.F32
	F64     = abi.F64
	Pointer = abi.Pointer
	Wchar   = abi.Wchar
	Size    = abi.Size
	I128    = abi.I128
	U128    = abi.U128
	SChar   = abi.SChar
	SShort  = abi.SShort
	SInt    = abi.SInt
	SLong   = abi.SLong
	SLLong  = abi.SLLong
)

// LongKind returns the TypeKind that matches C's "long" on the current
// host. Win64 treats long as 32-bit; SysV and AAPCS treat it as 64-bit.
func LongKind(unsigned bool) TypeKind { return abi.LongKind(unsigned) }
