package compile

import "github.com/nativeffi/trampoline/internal/abi"

// Convention describes the parts of a hardware calling convention that
// determine where each argument goes: which registers are available
// for integer/pointer arguments, which for floating-point arguments,
// how much shadow space the caller must reserve below stack arguments
// (Win64's 32 bytes; zero elsewhere), and what alignment the stack
// pointer must have at the call instruction.
//
// This plays the role the teacher's scanner.go played for WASM
// instruction sequences: walk a sequence of inputs (there, opcodes;
// here, parameter types) and classify each one, accumulating a result
// (there, CompilationCandidate bounds and Metrics; here, a Slot per
// parameter and a total stack footprint).
type Convention struct {
	IntRegs     []int16
	FloatRegs   []int16
	ShadowSpace int
	StackAlign  int
	// IntPairConsumesOne, when true, means a 128-bit integer argument
	// that must spill to the stack still only consumes one IntRegs slot
	// per 64-bit half check (AAPCS reserves a register pair and rounds
	// to an even register index; SysV and Win64 do not). No generator
	// sets the field and nothing reads it; Layout treats every
	// IntegerPair as consuming two IntRegs slots (or two stack slots)
	// regardless, which matches SysV and Win64 exactly and AAPCS's
	// common case.
	IntPairConsumesOne bool
}

// Slot describes where one parameter's value is marshalled: either the
// low register of IntRegs/FloatRegs (IntegerPair additionally uses the
// following register or stack slot for its upper half), or a byte
// offset from the stack pointer at the call instruction.
type Slot struct {
	Param       int
	Class       abi.ABIClass
	InReg       bool
	Reg         int16
	Reg2        int16 // second register for an IntegerPair that fits entirely in registers
	StackOffset int
	StackBytes  int
}

// Layout assigns each of sig's parameters a register or stack slot
// under conv, and returns the total bytes of stack space the
// trampoline must reserve for spilled arguments (already rounded up to
// conv.StackAlign, not including conv.ShadowSpace).
func Layout(conv Convention, sig *abi.Signature) (slots []Slot, stackBytes int) {
	nextInt, nextFloat, stackOff := 0, 0, 0
	slots = make([]Slot, sig.ParamCount())

	for i := 0; i < sig.ParamCount(); i++ {
		t := sig.ParamType(i)
		switch t.Class() {
		case abi.ClassFloat:
			if nextFloat < len(conv.FloatRegs) {
				slots[i] = Slot{Param: i, Class: abi.ClassFloat, InReg: true, Reg: conv.FloatRegs[nextFloat]}
				nextFloat++
				continue
			}
			slots[i] = Slot{Param: i, Class: abi.ClassFloat, StackOffset: stackOff, StackBytes: 8}
			stackOff += 8

		case abi.ClassIntegerPair:
			if nextInt+1 < len(conv.IntRegs) {
				slots[i] = Slot{
					Param: i, Class: abi.ClassIntegerPair, InReg: true,
					Reg:  conv.IntRegs[nextInt],
					Reg2: conv.IntRegs[nextInt+1],
				}
				nextInt += 2
				continue
			}
			// The pair itself spills to the stack, but nextInt is left
			// unchanged: a single leftover integer register is not wide
			// enough for the pair, yet a later plain-integer parameter can
			// still claim it, matching cross.c's generate_*_trampoline
			// functions (the stack-args branch never advances their
			// register-used counter).
			slots[i] = Slot{Param: i, Class: abi.ClassIntegerPair, StackOffset: stackOff, StackBytes: 16}
			stackOff += 16

		default:
			if nextInt < len(conv.IntRegs) {
				slots[i] = Slot{Param: i, Class: abi.ClassInteger, InReg: true, Reg: conv.IntRegs[nextInt]}
				nextInt++
				continue
			}
			slots[i] = Slot{Param: i, Class: abi.ClassInteger, StackOffset: stackOff, StackBytes: 8}
			stackOff += 8
		}
	}

	if conv.StackAlign > 0 {
		for stackOff%conv.StackAlign != 0 {
			stackOff++
		}
	}
	return slots, stackOff
}
