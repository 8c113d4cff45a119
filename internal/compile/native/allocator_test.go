package native

import "testing"

func TestAllocatorAllocateWritesAndStats(t *testing.T) {
	a := &Allocator{}

	p, err := a.Allocate(64)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Free()

	// Allocate rounds up to page granularity, so the page is at least
	// as large as requested but not necessarily an exact match.
	if p.Len() < 64 {
		t.Errorf("p.Len() = %d, want >= 64", p.Len())
	}

	b := p.Bytes()
	copy(b, []byte{0xc3, 0x90, 0x90, 0x90})
	if got := *(*[4]byte)(p.Base()); got != [4]byte{0xc3, 0x90, 0x90, 0x90} {
		t.Errorf("Base() bytes = %v, want [0xc3 0x90 0x90 0x90]", got)
	}

	stats := a.Stats()
	if stats.PagesAllocated != 1 {
		t.Errorf("PagesAllocated = %d, want 1", stats.PagesAllocated)
	}
	if stats.BytesAllocated != uint64(p.Len()) {
		t.Errorf("BytesAllocated = %d, want %d", stats.BytesAllocated, p.Len())
	}
	if stats.Live() != 1 {
		t.Errorf("Live() = %d, want 1", stats.Live())
	}
}

func TestAllocatorAllocateRejectsNonPositiveSize(t *testing.T) {
	a := &Allocator{}
	if _, err := a.Allocate(0); err == nil {
		t.Error("Allocate(0) succeeded, want error")
	}
	if _, err := a.Allocate(-1); err == nil {
		t.Error("Allocate(-1) succeeded, want error")
	}
}

func TestAllocatorFreeUpdatesStats(t *testing.T) {
	a := &Allocator{}
	p, err := a.Allocate(4096)
	if err != nil {
		t.Fatal(err)
	}
	freedLen := uint64(p.Len())
	if err := a.Free(p); err != nil {
		t.Fatal(err)
	}
	stats := a.Stats()
	if stats.PagesFreed != 1 {
		t.Errorf("PagesFreed = %d, want 1", stats.PagesFreed)
	}
	if stats.BytesFreed != freedLen {
		t.Errorf("BytesFreed = %d, want %d", stats.BytesFreed, freedLen)
	}
	if stats.Live() != 0 {
		t.Errorf("Live() = %d, want 0", stats.Live())
	}

	// Double free of the page itself should not panic or error.
	if err := p.Free(); err != nil {
		t.Errorf("second Free() = %v, want nil", err)
	}
}
