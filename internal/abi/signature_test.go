package abi

import (
	"errors"
	"testing"
	"unsafe"
)

func TestNewSignatureRejectsNilTarget(t *testing.T) {
	_, err := NewSignature("f", Void, nil, nil)
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("err = %v, want wrapping ErrUnsupportedType", err)
	}
}

func TestNewSignatureRejectsVoidParam(t *testing.T) {
	var dummy int
	_, err := NewSignature("f", I32, []TypeKind{I32, Void}, unsafe.Pointer(&dummy))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("err = %v, want wrapping ErrUnsupportedType", err)
	}
}

func TestNewSignatureAccessors(t *testing.T) {
	var dummy int
	target := unsafe.Pointer(&dummy)
	params := []TypeKind{I32, F64, Pointer}
	sig, err := NewSignature("add", I64, params, target)
	if err != nil {
		t.Fatal(err)
	}
	if sig.Name() != "add" {
		t.Errorf("Name() = %q, want %q", sig.Name(), "add")
	}
	if sig.ReturnType() != I64 {
		t.Errorf("ReturnType() = %s, want i64", sig.ReturnType())
	}
	if sig.ParamCount() != 3 {
		t.Errorf("ParamCount() = %d, want 3", sig.ParamCount())
	}
	if sig.ParamType(1) != F64 {
		t.Errorf("ParamType(1) = %s, want f64", sig.ParamType(1))
	}
	if sig.Target() != target {
		t.Error("Target() does not match the supplied pointer")
	}
}

func TestNewSignatureCopiesParams(t *testing.T) {
	var dummy int
	params := []TypeKind{I32, I32}
	sig, err := NewSignature("f", Void, params, unsafe.Pointer(&dummy))
	if err != nil {
		t.Fatal(err)
	}
	params[0] = F64
	if sig.ParamType(0) != I32 {
		t.Error("Signature.ParamType(0) changed after mutating the caller's slice")
	}
}

func TestSignatureParamTypesReturnsIndependentCopy(t *testing.T) {
	var dummy int
	sig, err := NewSignature("f", Void, []TypeKind{I32, I64}, unsafe.Pointer(&dummy))
	if err != nil {
		t.Fatal(err)
	}
	cp := sig.ParamTypes()
	cp[0] = F32
	if sig.ParamType(0) != I32 {
		t.Error("mutating ParamTypes() result affected the Signature")
	}
}

func TestNewSignatureAllowsVoidReturn(t *testing.T) {
	var dummy int
	sig, err := NewSignature("noop", Void, nil, unsafe.Pointer(&dummy))
	if err != nil {
		t.Fatal(err)
	}
	if !sig.ReturnType().IsVoid() {
		t.Error("ReturnType() is not Void")
	}
	if sig.ParamCount() != 0 {
		t.Errorf("ParamCount() = %d, want 0", sig.ParamCount())
	}
}
