// Package compile holds what the ABI code generators share: the
// Generator interface and the register/stack Layout walk. Choosing the
// generator for the host is done by the pick subpackage, which mirrors
// the teacher's capability-dispatch layer in exec/native_compile.go
// (compilerVariant / nativeBackend), but dispatches on calling
// convention instead of WASM opcode sequences.
package compile

import "github.com/nativeffi/trampoline/internal/abi"

// Generator compiles a Signature into machine code written directly
// into buf, returning the number of bytes written. It returns
// ErrEncodingOverflow if the generated trampoline would not fit in
// buf, and ErrUnsupportedType if sig names a type the generator cannot
// place in a register or stack slot under its calling convention.
type Generator interface {
	Build(sig *abi.Signature, buf []byte) (int, error)
}
