package trampoline

import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"

	"github.com/nativeffi/trampoline/internal/compile/native"
	"github.com/nativeffi/trampoline/internal/compile/pick"
)

// trampolineCapacity is the size of the executable page carved out for
// a single trampoline. 512 bytes comfortably holds the largest
// generated sequence across all three ABIs (a signature with every
// parameter spilled to the stack under Win64's shadow space, the
// widest case observed), the same figure create_ffi_function uses in
// the original source this engine replaces.
const trampolineCapacity = 512

// Invoker is the generated trampoline's entry point: args is a pointer
// to an ArgumentVector's backing array, ret is a ReturnSlot, or nil
// when the Signature's return type is Void.
//
// Invoker is called by casting a pointer to a word holding the raw code
// address to this func type (below), never through a TEXT-declared Go
// function. That cast gets
// no linker-generated ABI0 wrapper, so the call always uses Go's
// ABIInternal register convention for the callee's two pointer
// arguments; every generator's prologue reads them out of the matching
// registers rather than off the stack.
type Invoker func(args unsafe.Pointer, ret unsafe.Pointer)

// Trampoline owns one page of freshly generated machine code that
// marshals an ArgumentVector into sig's target calling convention and
// invokes sig.Target().
type Trampoline struct {
	sig    *Signature
	page   *native.Page
	invoke Invoker
	alloc  *native.Allocator
	log    *zap.Logger
}

// Option configures a Trampoline at construction time.
type Option func(*options)

type options struct {
	logger   *zap.Logger
	capacity int
}

// WithLogger overrides the process-wide default logger for this
// Trampoline's diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCapacity overrides the default page size reserved for the
// generated trampoline, for callers whose target ABI and signature
// shape need more than trampolineCapacity bytes.
func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// NewTrampoline compiles sig into a fresh page of native machine code
// for the host platform's calling convention.
func NewTrampoline(sig *Signature, opts ...Option) (*Trampoline, error) {
	o := options{logger: defaultLogger(), capacity: trampolineCapacity}
	for _, opt := range opts {
		opt(&o)
	}

	gen, ok := pick.Pick()
	if !ok {
		return nil, fmt.Errorf("trampoline: %w: unsupported platform", ErrUnsupportedType)
	}

	alloc := &native.Allocator{}
	page, err := alloc.Allocate(o.capacity)
	if err != nil {
		return nil, fmt.Errorf("trampoline: %w", err)
	}

	n, err := gen.Build(sig, page.Bytes())
	if err != nil {
		page.Free()
		return nil, fmt.Errorf("trampoline: build: %w", err)
	}
	if n == 0 {
		page.Free()
		return nil, fmt.Errorf("trampoline: build: %w", ErrEncodingOverflow)
	}

	native.FlushICache(page.Base(), n)

	// A Go func value points at a word holding the code address, so the
	// page's base address is stored in its own word first.
	entry := uintptr(page.Base())
	entryRef := &entry

	t := &Trampoline{
		sig:    sig,
		page:   page,
		alloc:  alloc,
		log:    o.logger,
		invoke: *(*Invoker)(unsafe.Pointer(&entryRef)),
	}

	t.log.Debug("trampoline built",
		zap.String("signature", sig.Name()),
		zap.Int("bytes", n),
		zap.Int("capacity", o.capacity),
	)
	return t, nil
}

// Close releases the trampoline's executable page. The caller must
// guarantee no invocation is in flight; Close does not synchronize
// against concurrent Invoke calls.
func (t *Trampoline) Close() error {
	if t.page == nil {
		return nil
	}
	err := t.alloc.Free(t.page)
	t.page = nil
	if err != nil {
		t.log.Warn("trampoline page release failed",
			zap.String("signature", t.sig.Name()),
			zap.Error(err),
		)
	}
	return err
}

// Signature returns the Signature this Trampoline was built from.
func (t *Trampoline) Signature() *Signature { return t.sig }
