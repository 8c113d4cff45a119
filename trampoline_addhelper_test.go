package trampoline

import (
	"runtime"
	"unsafe"

	asm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/arm64"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/nativeffi/trampoline/internal/compile/native"
)

var addHelperAlloc native.Allocator

// addTarget assembles a tiny int32_t add(int32_t, int32_t) function
// using whichever calling convention internal/compile/pick.Pick selects for
// the running GOOS/GOARCH, so trampoline_test.go can exercise
// NewTrampoline end to end without depending on cgo or a system
// compiler.
func addTarget() unsafe.Pointer {
	switch {
	case runtime.GOARCH == "amd64" && runtime.GOOS == "windows":
		return assembleAMD64Add(x86.REG_CX, x86.REG_DX)
	case runtime.GOARCH == "amd64":
		return assembleAMD64Add(x86.REG_DI, x86.REG_SI)
	case runtime.GOARCH == "arm64":
		return assembleARM64Add()
	default:
		panic("addTarget: unsupported test platform")
	}
}

func assembleAMD64Add(arg0, arg1 int16) unsafe.Pointer {
	b, err := asm.NewBuilder("amd64", 0)
	if err != nil {
		panic(err)
	}
	mov := b.NewProg()
	mov.As = x86.AMOVL
	mov.From.Type = obj.TYPE_REG
	mov.From.Reg = arg0
	mov.To.Type = obj.TYPE_REG
	mov.To.Reg = x86.REG_AX
	b.AddInstruction(mov)

	add := b.NewProg()
	add.As = x86.AADDL
	add.From.Type = obj.TYPE_REG
	add.From.Reg = arg1
	add.To.Type = obj.TYPE_REG
	add.To.Reg = x86.REG_AX
	b.AddInstruction(add)

	ret := b.NewProg()
	ret.As = obj.ARET
	b.AddInstruction(ret)

	return emitHelper(b.Assemble())
}

func assembleARM64Add() unsafe.Pointer {
	b, err := asm.NewBuilder("arm64", 0)
	if err != nil {
		panic(err)
	}
	add := b.NewProg()
	add.As = arm64.AADDW
	add.From.Type = obj.TYPE_REG
	add.From.Reg = arm64.REG_R1
	add.Reg = arm64.REG_R0
	add.To.Type = obj.TYPE_REG
	add.To.Reg = arm64.REG_R0
	b.AddInstruction(add)

	ret := b.NewProg()
	ret.As = obj.ARET
	b.AddInstruction(ret)

	return emitHelper(b.Assemble())
}

func emitHelper(code []byte) unsafe.Pointer {
	page, err := addHelperAlloc.Allocate(len(code))
	if err != nil {
		panic(err)
	}
	n := copy(page.Bytes(), code)
	native.FlushICache(page.Base(), n)
	return page.Base()
}
