package trampoline

import (
	"unsafe"

	"go.uber.org/zap"
)

// Invoke validates args and ret against t's Signature and, if they
// match, runs the generated trampoline. It returns false without
// calling into native code if n does not equal the Signature's
// parameter count, if len(args) is shorter than n, or if ret is nil
// for a non-Void return type. Every rejection and every successful
// dispatch is logged at Debug through t's injected logger.
func Invoke(t *Trampoline, args ArgumentVector, n int, ret ReturnSlot) bool {
	sig := t.sig

	if n != sig.ParamCount() || len(args) < n {
		t.log.Debug("invoke rejected",
			zap.Error(ErrArityMismatch),
			zap.String("signature", sig.Name()),
			zap.Int("want", sig.ParamCount()),
			zap.Int("got", n),
		)
		return false
	}
	if ret == nil && !sig.ReturnType().IsVoid() {
		t.log.Debug("invoke rejected",
			zap.Error(ErrMissingReturnSlot),
			zap.String("signature", sig.Name()),
		)
		return false
	}

	var argsPtr unsafe.Pointer
	if n > 0 {
		argsPtr = unsafe.Pointer(&args[0])
	}
	t.invoke(argsPtr, ret)

	t.log.Debug("invoke dispatched", zap.String("signature", sig.Name()))
	return true
}
