package native

// Stats describes cumulative executable-memory usage for an Allocator.
// It plays the role the teacher's Metrics struct played for its JIT
// candidate-selection heuristics, repurposed here as plain allocator
// bookkeeping since a trampoline engine has no candidate sequences to
// score — only pages to count.
type Stats struct {
	PagesAllocated uint64
	PagesFreed     uint64
	BytesAllocated uint64
	BytesFreed     uint64
}

// Live returns the number of pages currently allocated but not yet
// freed.
func (s Stats) Live() uint64 { return s.PagesAllocated - s.PagesFreed }
