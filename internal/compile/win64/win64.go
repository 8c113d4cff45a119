// Package win64 generates trampolines implementing the Microsoft x64
// calling convention: the convention original_source/cross.c's
// generate_x86_64_win64_trampoline hand-encodes opcode bytes for. This
// package produces the same machine code using golang-asm's typed
// instruction builder instead.
package win64

import (
	"fmt"

	asm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/nativeffi/trampoline/internal/abi"
	"github.com/nativeffi/trampoline/internal/compile"
)

// convention is the Win64 integer/float argument register order: RCX,
// RDX, R8, R9 for integers/pointers (independently counted from
// floats, matching cross.c's own simplification of the ABI rather than
// the stricter positional rule some compilers apply); XMM0-XMM3 for
// floats. Win64 requires 32 bytes of caller-reserved shadow space
// below any stack arguments, and 16-byte RSP alignment at the CALL.
var convention = compile.Convention{
	IntRegs:     []int16{x86.REG_CX, x86.REG_DX, x86.REG_R8, x86.REG_R9},
	FloatRegs:   []int16{x86.REG_X0, x86.REG_X1, x86.REG_X2, x86.REG_X3},
	ShadowSpace: 32,
	StackAlign:  16,
}

// Generator implements compile.Generator for the Win64 ABI.
type Generator struct{}

// New returns a Win64 Generator.
func New() *Generator { return &Generator{} }

const (
	argsReg = x86.REG_R10
	retReg  = x86.REG_R11
	scratch = x86.REG_AX
)

// Build implements compile.Generator.
func (g *Generator) Build(sig *abi.Signature, buf []byte) (int, error) {
	b, err := asm.NewBuilder("amd64", 0)
	if err != nil {
		return 0, fmt.Errorf("win64: %w", err)
	}

	conv := convention
	hiddenPointerReturn := sig.ReturnType().Class() == abi.ClassIntegerPair
	if hiddenPointerReturn {
		// RCX is consumed by the hidden return-buffer pointer, so the
		// first real parameter starts at RDX.
		conv.IntRegs = convention.IntRegs[1:]
	}
	slots, spillBytes := compile.Layout(conv, sig)
	total := roundUp16(convention.ShadowSpace + spillBytes)

	// The trampoline is invoked through a bare unsafe.Pointer-to-funcval
	// cast, never through a TEXT-declared Go function, so it gets no
	// linker-generated ABI0 wrapper: the call site uses ABIInternal
	// register passing directly. On amd64 that delivers the two
	// unsafe.Pointer arguments in AX and BX, not on the stack.
	emitMOVQReg(b, x86.REG_AX, argsReg)
	emitMOVQReg(b, x86.REG_BX, retReg)

	sub := b.NewProg()
	sub.As = x86.ASUBQ
	sub.From.Type = obj.TYPE_CONST
	sub.From.Offset = int64(total)
	sub.To.Type = obj.TYPE_REG
	sub.To.Reg = x86.REG_SP
	b.AddInstruction(sub)

	// A __int128/unsigned __int128 return value does not fit in
	// RAX:RDX under Win64; the caller passes a hidden pointer to the
	// return buffer as the first argument instead. Since our return
	// buffer pointer is already retReg, and the trampoline itself owns
	// the register-argument assignment, we simply pass retReg in RCX
	// and the generator never assigns a parameter slot to RCX in this
	// case by treating it as pre-consumed.
	if hiddenPointerReturn {
		mov := b.NewProg()
		mov.As = x86.AMOVQ
		mov.From.Type = obj.TYPE_REG
		mov.From.Reg = retReg
		mov.To.Type = obj.TYPE_REG
		mov.To.Reg = x86.REG_CX
		b.AddInstruction(mov)
	}

	for _, slot := range slots {
		t := sig.ParamType(slot.Param)
		if err := marshalParam(b, t, slot, hiddenPointerReturn); err != nil {
			return 0, fmt.Errorf("win64: param %d: %w", slot.Param, err)
		}
	}

	movTarget := b.NewProg()
	movTarget.As = x86.AMOVQ
	movTarget.From.Type = obj.TYPE_CONST
	movTarget.From.Offset = int64(uintptr(sig.Target()))
	movTarget.To.Type = obj.TYPE_REG
	movTarget.To.Reg = scratch
	b.AddInstruction(movTarget)

	call := b.NewProg()
	call.As = obj.ACALL
	call.To.Type = obj.TYPE_REG
	call.To.Reg = scratch
	b.AddInstruction(call)

	if !hiddenPointerReturn {
		if err := storeReturn(b, sig.ReturnType(), retReg); err != nil {
			return 0, fmt.Errorf("win64: return: %w", err)
		}
	}

	add := b.NewProg()
	add.As = x86.AADDQ
	add.From.Type = obj.TYPE_CONST
	add.From.Offset = int64(total)
	add.To.Type = obj.TYPE_REG
	add.To.Reg = x86.REG_SP
	b.AddInstruction(add)

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

func roundUp16(n int) int {
	for n%16 != 0 {
		n++
	}
	return n
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

// stackSlot returns the final stack displacement for a spilled
// argument: past the shadow space, since the shadow space is reserved
// for the callee's own use even though we never populate it.
func stackSlot(off int) int64 { return int64(32 + off) }

func marshalParam(b *asm.Builder, t abi.TypeKind, slot compile.Slot, hiddenPointerReturn bool) error {
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
			dst = x86.REG_X15
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
			store.To.Offset = stackSlot(slot.StackOffset)
			b.AddInstruction(store)
		}
		return nil

	case abi.ClassIntegerPair:
		loLoad := b.NewProg()
		loLoad.As = x86.AMOVQ
		loLoad.From.Type = obj.TYPE_MEM
		loLoad.From.Reg = scratch
		loLoad.To.Type = obj.TYPE_REG
		if slot.InReg {
			loLoad.To.Reg = slot.Reg
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
			hiLoad.To.Reg = slot.Reg2
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
			storeLo.To.Offset = stackSlot(slot.StackOffset)
			b.AddInstruction(storeLo)

			storeHi := b.NewProg()
			storeHi.As = x86.AMOVQ
			storeHi.From.Type = obj.TYPE_REG
			storeHi.From.Reg = x86.REG_R15
			storeHi.To.Type = obj.TYPE_MEM
			storeHi.To.Reg = x86.REG_SP
			storeHi.To.Offset = stackSlot(slot.StackOffset) + 8
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
			store.To.Offset = stackSlot(slot.StackOffset)
			b.AddInstruction(store)
		}
		return nil
	}
}

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
