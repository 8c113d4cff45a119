// Package aapcs generates trampolines implementing the AArch64
// Procedure Call Standard: the convention original_source/cross.c's
// generate_arm64_aapcs_trampoline hand-encodes raw instruction words
// for. This package produces the same machine code using golang-asm's
// typed instruction builder instead.
package aapcs

import (
	"fmt"

	asm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/arm64"

	"github.com/nativeffi/trampoline/internal/abi"
	"github.com/nativeffi/trampoline/internal/compile"
)

// convention is the AAPCS64 argument register order: X0-X7 for
// integers/pointers, V0-V7 (addressed here through their 64-bit Dn
// view) for floats. Stack arguments require 16-byte SP alignment at
// the BL instruction; AAPCS64 reserves no shadow space.
var convention = compile.Convention{
	IntRegs:     []int16{arm64.REG_R0, arm64.REG_R1, arm64.REG_R2, arm64.REG_R3, arm64.REG_R4, arm64.REG_R5, arm64.REG_R6, arm64.REG_R7},
	FloatRegs:   []int16{arm64.REG_F0, arm64.REG_F1, arm64.REG_F2, arm64.REG_F3, arm64.REG_F4, arm64.REG_F5, arm64.REG_F6, arm64.REG_F7},
	ShadowSpace: 0,
	StackAlign:  16,
}

// Generator implements compile.Generator for the AArch64 AAPCS ABI.
type Generator struct{}

// New returns an AAPCS64 Generator.
func New() *Generator { return &Generator{} }

// argsReg and retReg hold the trampoline's own incoming arguments for
// the lifetime of the generated function; elemReg is scratch used to
// dereference each argument's value pointer. None of X8, X11, X12 is
// an AAPCS argument register, so marshalling the target call never
// clobbers them. X30, the link register, is the one register the
// target call does clobber (via BL); Build saves and restores it
// around the call explicitly.
const (
	argsReg = arm64.REG_R11
	retReg  = arm64.REG_R12
	elemReg = arm64.REG_R8
)

// Build implements compile.Generator.
func (g *Generator) Build(sig *abi.Signature, buf []byte) (int, error) {
	b, err := asm.NewBuilder("arm64", 0)
	if err != nil {
		return 0, fmt.Errorf("aapcs: %w", err)
	}

	slots, stackBytes := compile.Layout(convention, sig)

	// BL clobbers X30, the link register holding the address the
	// trampoline itself must return to. A frame is reserved
	// unconditionally (even with zero spilled arguments) to save it
	// across the call to the real target and restore it before the
	// trampoline's own RET; 16 bytes keeps the frame itself
	// 16-byte-aligned regardless of stackBytes.
	frameBytes := stackBytes + 16

	// The trampoline is invoked through a bare unsafe.Pointer-to-funcval
	// cast, never through a TEXT-declared Go function, so it gets no
	// linker-generated ABI0 wrapper: the call site uses ABIInternal
	// register passing directly. On arm64 that delivers the two
	// unsafe.Pointer arguments in R0 and R1, not on the stack.
	emitMOVDReg(b, arm64.REG_R0, argsReg)
	emitMOVDReg(b, arm64.REG_R1, retReg)

	sub := b.NewProg()
	sub.As = arm64.ASUB
	sub.From.Type = obj.TYPE_CONST
	sub.From.Offset = int64(frameBytes)
	sub.Reg = arm64.REGSP
	sub.To.Type = obj.TYPE_REG
	sub.To.Reg = arm64.REGSP
	b.AddInstruction(sub)

	saveLR := b.NewProg()
	saveLR.As = arm64.AMOVD
	saveLR.From.Type = obj.TYPE_REG
	saveLR.From.Reg = arm64.REGLINK
	saveLR.To.Type = obj.TYPE_MEM
	saveLR.To.Reg = arm64.REGSP
	saveLR.To.Offset = int64(stackBytes)
	b.AddInstruction(saveLR)

	for _, slot := range slots {
		t := sig.ParamType(slot.Param)
		if err := marshalParam(b, t, slot); err != nil {
			return 0, fmt.Errorf("aapcs: param %d: %w", slot.Param, err)
		}
	}

	movTarget := b.NewProg()
	movTarget.As = arm64.AMOVD
	movTarget.From.Type = obj.TYPE_CONST
	movTarget.From.Offset = int64(uintptr(sig.Target()))
	movTarget.To.Type = obj.TYPE_REG
	movTarget.To.Reg = elemReg
	b.AddInstruction(movTarget)

	call := b.NewProg()
	call.As = obj.ACALL
	call.To.Type = obj.TYPE_REG
	call.To.Reg = elemReg
	b.AddInstruction(call)

	if err := storeReturn(b, sig.ReturnType(), retReg); err != nil {
		return 0, fmt.Errorf("aapcs: return: %w", err)
	}

	restoreLR := b.NewProg()
	restoreLR.As = arm64.AMOVD
	restoreLR.From.Type = obj.TYPE_MEM
	restoreLR.From.Reg = arm64.REGSP
	restoreLR.From.Offset = int64(stackBytes)
	restoreLR.To.Type = obj.TYPE_REG
	restoreLR.To.Reg = arm64.REGLINK
	b.AddInstruction(restoreLR)

	add := b.NewProg()
	add.As = arm64.AADD
	add.From.Type = obj.TYPE_CONST
	add.From.Offset = int64(frameBytes)
	add.Reg = arm64.REGSP
	add.To.Type = obj.TYPE_REG
	add.To.Reg = arm64.REGSP
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

func emitMOVDReg(b *asm.Builder, src, dst int16) {
	p := b.NewProg()
	p.As = arm64.AMOVD
	p.From.Type = obj.TYPE_REG
	p.From.Reg = src
	p.To.Type = obj.TYPE_REG
	p.To.Reg = dst
	b.AddInstruction(p)
}

func marshalParam(b *asm.Builder, t abi.TypeKind, slot compile.Slot) error {
	loadElemPtr := b.NewProg()
	loadElemPtr.As = arm64.AMOVD
	loadElemPtr.From.Type = obj.TYPE_MEM
	loadElemPtr.From.Reg = argsReg
	loadElemPtr.From.Offset = int64(slot.Param) * 8
	loadElemPtr.To.Type = obj.TYPE_REG
	loadElemPtr.To.Reg = elemReg
	b.AddInstruction(loadElemPtr)

	switch slot.Class {
	case abi.ClassFloat:
		mnem := arm64.AFMOVS
		if t.Size() == 8 {
			mnem = arm64.AFMOVD
		}
		dst := slot.Reg
		if !slot.InReg {
			dst = arm64.REG_F16 // scratch D register, spilled to stack below
		}
		load := b.NewProg()
		load.As = mnem
		load.From.Type = obj.TYPE_MEM
		load.From.Reg = elemReg
		load.To.Type = obj.TYPE_REG
		load.To.Reg = dst
		b.AddInstruction(load)
		if !slot.InReg {
			store := b.NewProg()
			store.As = mnem
			store.From.Type = obj.TYPE_REG
			store.From.Reg = dst
			store.To.Type = obj.TYPE_MEM
			store.To.Reg = arm64.REGSP
			store.To.Offset = int64(slot.StackOffset)
			b.AddInstruction(store)
		}
		return nil

	case abi.ClassIntegerPair:
		loLoad := b.NewProg()
		loLoad.As = arm64.AMOVD
		loLoad.From.Type = obj.TYPE_MEM
		loLoad.From.Reg = elemReg
		loLoad.To.Type = obj.TYPE_REG
		if slot.InReg {
			loLoad.To.Reg = slot.Reg
		} else {
			loLoad.To.Reg = arm64.REG_R9
		}
		b.AddInstruction(loLoad)

		hiLoad := b.NewProg()
		hiLoad.As = arm64.AMOVD
		hiLoad.From.Type = obj.TYPE_MEM
		hiLoad.From.Reg = elemReg
		hiLoad.From.Offset = 8
		hiLoad.To.Type = obj.TYPE_REG
		if slot.InReg {
			hiLoad.To.Reg = slot.Reg2
		} else {
			hiLoad.To.Reg = arm64.REG_R10
		}
		b.AddInstruction(hiLoad)

		if !slot.InReg {
			storeLo := b.NewProg()
			storeLo.As = arm64.AMOVD
			storeLo.From.Type = obj.TYPE_REG
			storeLo.From.Reg = arm64.REG_R9
			storeLo.To.Type = obj.TYPE_MEM
			storeLo.To.Reg = arm64.REGSP
			storeLo.To.Offset = int64(slot.StackOffset)
			b.AddInstruction(storeLo)

			storeHi := b.NewProg()
			storeHi.As = arm64.AMOVD
			storeHi.From.Type = obj.TYPE_REG
			storeHi.From.Reg = arm64.REG_R10
			storeHi.To.Type = obj.TYPE_MEM
			storeHi.To.Reg = arm64.REGSP
			storeHi.To.Offset = int64(slot.StackOffset) + 8
			b.AddInstruction(storeHi)
		}
		return nil

	default:
		dst := slot.Reg
		if !slot.InReg {
			dst = arm64.REG_R9
		}
		mnem, err := integerLoadOp(t)
		if err != nil {
			return err
		}
		load := b.NewProg()
		load.As = mnem
		load.From.Type = obj.TYPE_MEM
		load.From.Reg = elemReg
		load.To.Type = obj.TYPE_REG
		load.To.Reg = dst
		b.AddInstruction(load)
		if !slot.InReg {
			store := b.NewProg()
			store.As = arm64.AMOVD
			store.From.Type = obj.TYPE_REG
			store.From.Reg = dst
			store.To.Type = obj.TYPE_MEM
			store.To.Reg = arm64.REGSP
			store.To.Offset = int64(slot.StackOffset)
			b.AddInstruction(store)
		}
		return nil
	}
}

// integerLoadOp picks the widening load that matches t's extension
// rule, mirroring cross.c's per-FFI_Type LDRB/LDRSB/LDRH/LDRSH/LDR
// selection.
func integerLoadOp(t abi.TypeKind) (obj.As, error) {
	switch t.Size() {
	case 1:
		if t.Extend() == abi.ExtendZero {
			return arm64.AMOVBU, nil
		}
		return arm64.AMOVB, nil
	case 2:
		if t.Extend() == abi.ExtendZero {
			return arm64.AMOVHU, nil
		}
		return arm64.AMOVH, nil
	case 4:
		if t.Extend() == abi.ExtendZero {
			return arm64.AMOVWU, nil
		}
		return arm64.AMOVW, nil
	case 8:
		return arm64.AMOVD, nil
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
		mnem := arm64.AFMOVS
		if ret.Size() == 8 {
			mnem = arm64.AFMOVD
		}
		p := b.NewProg()
		p.As = mnem
		p.From.Type = obj.TYPE_REG
		p.From.Reg = arm64.REG_F0
		p.To.Type = obj.TYPE_MEM
		p.To.Reg = retBufReg
		b.AddInstruction(p)
		return nil
	case abi.ClassIntegerPair:
		lo := b.NewProg()
		lo.As = arm64.AMOVD
		lo.From.Type = obj.TYPE_REG
		lo.From.Reg = arm64.REG_R0
		lo.To.Type = obj.TYPE_MEM
		lo.To.Reg = retBufReg
		b.AddInstruction(lo)

		hi := b.NewProg()
		hi.As = arm64.AMOVD
		hi.From.Type = obj.TYPE_REG
		hi.From.Reg = arm64.REG_R1
		hi.To.Type = obj.TYPE_MEM
		hi.To.Reg = retBufReg
		hi.To.Offset = 8
		b.AddInstruction(hi)
		return nil
	default:
		p := b.NewProg()
		switch ret.Size() {
		case 1:
			p.As = arm64.AMOVBU
		case 2:
			p.As = arm64.AMOVHU
		case 4:
			p.As = arm64.AMOVWU
		default:
			p.As = arm64.AMOVD
		}
		p.From.Type = obj.TYPE_REG
		p.From.Reg = arm64.REG_R0
		p.To.Type = obj.TYPE_MEM
		p.To.Reg = retBufReg
		b.AddInstruction(p)
		return nil
	}
}
