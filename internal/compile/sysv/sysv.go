// Package sysv generates trampolines implementing the x86-64 System V
// calling convention (Linux, macOS, BSD on amd64): the convention
// original_source/cross.c's generate_x86_64_sysv_trampoline hand-
// encodes opcode bytes for. This package produces the same machine
// code using golang-asm's typed instruction builder instead.
package sysv

import (
	"fmt"

	asm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/nativeffi/trampoline/internal/abi"
	"github.com/nativeffi/trampoline/internal/compile"
)

// convention is the SysV AMD64 integer/float argument register order:
// RDI, RSI, RDX, RCX, R8, R9 for integers/pointers; XMM0-XMM7 for
// floats. A stack argument area, when present, must leave RSP 16-byte
// aligned at the CALL instruction; SysV reserves no shadow space.
var convention = compile.Convention{
	IntRegs:     []int16{x86.REG_DI, x86.REG_SI, x86.REG_DX, x86.REG_CX, x86.REG_R8, x86.REG_R9},
	FloatRegs:   []int16{x86.REG_X0, x86.REG_X1, x86.REG_X2, x86.REG_X3, x86.REG_X4, x86.REG_X5, x86.REG_X6, x86.REG_X7},
	ShadowSpace: 0,
	StackAlign:  16,
}

// Generator implements compile.Generator for the SysV AMD64 ABI.
type Generator struct{}

// New returns a SysV AMD64 Generator.
func New() *Generator { return &Generator{} }

// argsReg and retReg hold the trampoline's own two incoming arguments
// (the ArgumentVector base pointer and the return slot pointer) for
// the lifetime of the generated function. Neither is a SysV argument
// register, so marshalling the target call never clobbers them.
const (
	argsReg = x86.REG_R10
	retReg  = x86.REG_R11
	scratch = x86.REG_AX
)

// Build implements compile.Generator.
func (g *Generator) Build(sig *abi.Signature, buf []byte) (int, error) {
	b, err := asm.NewBuilder("amd64", 0)
	if err != nil {
		return 0, fmt.Errorf("sysv: %w", err)
	}

	slots, stackBytes := compile.Layout(convention, sig)

	// The trampoline is invoked through a bare unsafe.Pointer-to-funcval
	// cast, never through a TEXT-declared Go function, so it gets no
	// linker-generated ABI0 wrapper: the call site uses ABIInternal
	// register passing directly. On amd64 that delivers the two
	// unsafe.Pointer arguments in AX and BX, not on the stack.
	emitMOVQReg(b, x86.REG_AX, argsReg)
	emitMOVQReg(b, x86.REG_BX, retReg)

	if stackBytes > 0 {
		sub := b.NewProg()
		sub.As = x86.ASUBQ
		sub.From.Type = obj.TYPE_CONST
		sub.From.Offset = int64(stackBytes)
		sub.To.Type = obj.TYPE_REG
		sub.To.Reg = x86.REG_SP
		b.AddInstruction(sub)
	}

	for _, slot := range slots {
		t := sig.ParamType(slot.Param)
		if err := marshalParam(b, t, slot); err != nil {
			return 0, fmt.Errorf("sysv: param %d: %w", slot.Param, err)
		}
	}

	// AL must be zero on entry to a variadic-capable SysV call site;
	// every call site here qualifies as one from the callee's point of
	// view, since the trampoline cannot know whether the real target
	// was declared variadic.
	zeroAL := b.NewProg()
	zeroAL.As = x86.AMOVB
	zeroAL.From.Type = obj.TYPE_CONST
	zeroAL.From.Offset = 0
	zeroAL.To.Type = obj.TYPE_REG
	zeroAL.To.Reg = x86.REG_AX
	b.AddInstruction(zeroAL)

	// The target address goes into R13, not RAX, so the AL set above
	// survives to the call. R13 is only a spill temporary during
	// marshalling, which is finished by now.
	movTarget := b.NewProg()
	movTarget.As = x86.AMOVQ
	movTarget.From.Type = obj.TYPE_CONST
	movTarget.From.Offset = int64(uintptr(sig.Target()))
	movTarget.To.Type = obj.TYPE_REG
	movTarget.To.Reg = x86.REG_R13
	b.AddInstruction(movTarget)

	call := b.NewProg()
	call.As = obj.ACALL
	call.To.Type = obj.TYPE_REG
	call.To.Reg = x86.REG_R13
	b.AddInstruction(call)

	if err := storeReturn(b, sig.ReturnType(), retReg); err != nil {
		return 0, fmt.Errorf("sysv: return: %w", err)
	}

	if stackBytes > 0 {
		add := b.NewProg()
		add.As = x86.AADDQ
		add.From.Type = obj.TYPE_CONST
		add.From.Offset = int64(stackBytes)
		add.To.Type = obj.TYPE_REG
		add.To.Reg = x86.REG_SP
		b.AddInstruction(add)
	}

	ret := b.NewProg()
	ret.As = obj.ARET
	b.AddInstruction(ret)

	code := b.Assemble()
	if len(code) > len(buf) {
		return 0, abi.ErrEncodingOverflow
	}
	n := copy(buf, code)
	return n, nil
}

func emitMOVQReg(b *asm.Builder, src, dst int16) {
	p := b.NewProg()
	p.As = x86.AMOVQ
	p.From.Type = obj.TYPE_REG
	p.From.Reg = src
	p.To.Type = obj.TYPE_REG
	p.To.Reg = dst
	b.AddInstruction(p)
}

// marshalParam loads the pointed-to value for slot's parameter into
// its assigned register or stack slot. It always indirects through
// scratch first: args[slot.Param] holds a pointer to the actual
// argument value, not the value itself.
func marshalParam(b *asm.Builder, t abi.TypeKind, slot compile.Slot) error {
	loadElemPtr := b.NewProg()
	loadElemPtr.As = x86.AMOVQ
	loadElemPtr.From.Type = obj.TYPE_MEM
	loadElemPtr.From.Reg = argsReg
	loadElemPtr.From.Offset = int64(slot.Param) * 8
	loadElemPtr.To.Type = obj.TYPE_REG
	loadElemPtr.To.Reg = scratch
	b.AddInstruction(loadElemPtr)

	switch slot.Class {
	case abi.ClassFloat:
		mnem := x86.AMOVSS
		if t.Size() == 8 {
			mnem = x86.AMOVSD
		}
		dst := slot.Reg
		if !slot.InReg {
			dst = x86.REG_X15 // scratch XMM, spilled to stack below
		}
		load := b.NewProg()
		load.As = mnem
		load.From.Type = obj.TYPE_MEM
		load.From.Reg = scratch
		load.To.Type = obj.TYPE_REG
		load.To.Reg = dst
		b.AddInstruction(load)
		if !slot.InReg {
			store := b.NewProg()
			store.As = mnem
			store.From.Type = obj.TYPE_REG
			store.From.Reg = dst
			store.To.Type = obj.TYPE_MEM
			store.To.Reg = x86.REG_SP
			store.To.Offset = int64(slot.StackOffset)
			b.AddInstruction(store)
		}
		return nil

	case abi.ClassIntegerPair:
		lowDst, highDst := slot.Reg, slot.Reg2
		loLoad := b.NewProg()
		loLoad.As = x86.AMOVQ
		loLoad.From.Type = obj.TYPE_MEM
		loLoad.From.Reg = scratch
		loLoad.To.Type = obj.TYPE_REG
		if slot.InReg {
			loLoad.To.Reg = lowDst
		} else {
			loLoad.To.Reg = x86.REG_R13
		}
		b.AddInstruction(loLoad)

		hiLoad := b.NewProg()
		hiLoad.As = x86.AMOVQ
		hiLoad.From.Type = obj.TYPE_MEM
		hiLoad.From.Reg = scratch
		hiLoad.From.Offset = 8
		hiLoad.To.Type = obj.TYPE_REG
		if slot.InReg {
			hiLoad.To.Reg = highDst
		} else {
			hiLoad.To.Reg = x86.REG_R15
		}
		b.AddInstruction(hiLoad)

		if !slot.InReg {
			storeLo := b.NewProg()
			storeLo.As = x86.AMOVQ
			storeLo.From.Type = obj.TYPE_REG
			storeLo.From.Reg = x86.REG_R13
			storeLo.To.Type = obj.TYPE_MEM
			storeLo.To.Reg = x86.REG_SP
			storeLo.To.Offset = int64(slot.StackOffset)
			b.AddInstruction(storeLo)

			storeHi := b.NewProg()
			storeHi.As = x86.AMOVQ
			storeHi.From.Type = obj.TYPE_REG
			storeHi.From.Reg = x86.REG_R15
			storeHi.To.Type = obj.TYPE_MEM
			storeHi.To.Reg = x86.REG_SP
			storeHi.To.Offset = int64(slot.StackOffset) + 8
			b.AddInstruction(storeHi)
		}
		return nil

	default:
		dst := slot.Reg
		if !slot.InReg {
			dst = x86.REG_R13
		}
		mnem, err := integerLoadOp(t)
		if err != nil {
			return err
		}
		load := b.NewProg()
		load.As = mnem
		load.From.Type = obj.TYPE_MEM
		load.From.Reg = scratch
		load.To.Type = obj.TYPE_REG
		load.To.Reg = dst
		b.AddInstruction(load)
		if !slot.InReg {
			store := b.NewProg()
			store.As = x86.AMOVQ
			store.From.Type = obj.TYPE_REG
			store.From.Reg = dst
			store.To.Type = obj.TYPE_MEM
			store.To.Reg = x86.REG_SP
			store.To.Offset = int64(slot.StackOffset)
			b.AddInstruction(store)
		}
		return nil
	}
}

// integerLoadOp picks the widening move that matches t's extension
// rule, mirroring cross.c's per-FFI_Type opcode switch for GPR loads.
func integerLoadOp(t abi.TypeKind) (obj.As, error) {
	switch t.Size() {
	case 1:
		if t.Extend() == abi.ExtendZero {
			return x86.AMOVBQZX, nil
		}
		return x86.AMOVBQSX, nil
	case 2:
		if t.Extend() == abi.ExtendZero {
			return x86.AMOVWQZX, nil
		}
		return x86.AMOVWQSX, nil
	case 4:
		if t.Extend() == abi.ExtendZero {
			return x86.AMOVL, nil
		}
		return x86.AMOVLQSX, nil
	case 8:
		return x86.AMOVQ, nil
	default:
		return 0, fmt.Errorf("%w: %s", abi.ErrUnsupportedType, t)
	}
}

// storeReturn writes the target function's return value (AX/XMM0, or
// AX:DX for a 128-bit integer pair) into [retBufReg].
func storeReturn(b *asm.Builder, ret abi.TypeKind, retBufReg int16) error {
	if ret.IsVoid() {
		return nil
	}
	switch ret.Class() {
	case abi.ClassFloat:
		mnem := x86.AMOVSS
		if ret.Size() == 8 {
			mnem = x86.AMOVSD
		}
		p := b.NewProg()
		p.As = mnem
		p.From.Type = obj.TYPE_REG
		p.From.Reg = x86.REG_X0
		p.To.Type = obj.TYPE_MEM
		p.To.Reg = retBufReg
		b.AddInstruction(p)
		return nil
	case abi.ClassIntegerPair:
		lo := b.NewProg()
		lo.As = x86.AMOVQ
		lo.From.Type = obj.TYPE_REG
		lo.From.Reg = x86.REG_AX
		lo.To.Type = obj.TYPE_MEM
		lo.To.Reg = retBufReg
		b.AddInstruction(lo)

		hi := b.NewProg()
		hi.As = x86.AMOVQ
		hi.From.Type = obj.TYPE_REG
		hi.From.Reg = x86.REG_DX
		hi.To.Type = obj.TYPE_MEM
		hi.To.Reg = retBufReg
		hi.To.Offset = 8
		b.AddInstruction(hi)
		return nil
	default:
		p := b.NewProg()
		switch ret.Size() {
		case 1:
			p.As = x86.AMOVB
		case 2:
			p.As = x86.AMOVW
		case 4:
			p.As = x86.AMOVL
		default:
			p.As = x86.AMOVQ
		}
		p.From.Type = obj.TYPE_REG
		p.From.Reg = x86.REG_AX
		p.To.Type = obj.TYPE_MEM
		p.To.Reg = retBufReg
		b.AddInstruction(p)
		return nil
	}
}
