// Package native provides the platform memory service: allocation and
// release of executable pages for trampolines, and instruction-cache
// maintenance after writing fresh code into them.
package native

import (
	"fmt"
	"sync"
	"unsafe"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/nativeffi/trampoline/internal/abi"
)

// Page is one RWX region carved out for a single trampoline. Unlike the
// teacher's arena-style MMapAllocator (which packs many short-lived JIT
// blocks into shared mmap blocks and only ever frees all of them at
// once), a Page is allocated and freed independently, because a
// Trampoline's lifetime is unrelated to any sibling Trampoline's.
type Page struct {
	mem mmap.MMap
}

// Base returns the address of the first byte of the page.
func (p *Page) Base() unsafe.Pointer {
	if len(p.mem) == 0 {
		return nil
	}
	return unsafe.Pointer(&p.mem[0])
}

// Bytes exposes the page's backing memory for writing generated code
// into. The slice remains valid until Free is called.
func (p *Page) Bytes() []byte { return p.mem }

// Len returns the page's capacity in bytes.
func (p *Page) Len() int { return len(p.mem) }

// Free releases the page back to the OS. Calling Free again after the
// page has been released does nothing and returns nil.
func (p *Page) Free() error {
	if p.mem == nil {
		return nil
	}
	err := p.mem.Unmap()
	p.mem = nil
	return err
}

// Allocator hands out executable pages and tracks aggregate usage for
// diagnostics, the way the teacher's CodeCache tracked usedSize against
// maxSize.
type Allocator struct {
	mu    sync.Mutex
	stats Stats
}

// Allocate reserves size bytes of RWX memory, rounded up to page
// granularity by roundUpToPageSize before the mmap call. It fails if
// size <= 0, and with an error wrapping abi.ErrOutOfMemory (matchable
// with errors.Is) if the OS refuses the mapping.
func (a *Allocator) Allocate(size int) (*Page, error) {
	if size <= 0 {
		return nil, fmt.Errorf("native: allocate: invalid size %d", size)
	}
	mem, err := mmap.MapRegion(nil, roundUpToPageSize(size), mmap.EXEC|mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, fmt.Errorf("native: mmap failed: %w: %w", abi.ErrOutOfMemory, err)
	}
	a.mu.Lock()
	a.stats.PagesAllocated++
	a.stats.BytesAllocated += uint64(len(mem))
	a.mu.Unlock()
	return &Page{mem: mem}, nil
}

// roundUpToPageSize rounds size up to the host's page granularity.
// mmap.MapRegion would round up internally regardless; rounding here
// first keeps Stats().BytesAllocated matching what was actually mapped.
func roundUpToPageSize(size int) int {
	ps := PageSize()
	if ps <= 0 {
		return size
	}
	if rem := size % ps; rem != 0 {
		size += ps - rem
	}
	return size
}

// Stats reports cumulative allocator usage.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// recordFree adds a released page of n bytes to the running totals for
// diagnostics. Free calls it after releasing the page.
func (a *Allocator) recordFree(n int) {
	a.mu.Lock()
	a.stats.PagesFreed++
	a.stats.BytesFreed += uint64(n)
	a.mu.Unlock()
}

// Free releases p and records it in the allocator's running totals.
func (a *Allocator) Free(p *Page) error {
	n := p.Len()
	err := p.Free()
	a.recordFree(n)
	return err
}
