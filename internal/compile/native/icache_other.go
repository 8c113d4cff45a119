//go:build !arm64

package native

import "unsafe"

// FlushICache makes freshly written trampoline bytes visible to the
// instruction fetch unit. On x86-64 this is a no-op: the architecture
// keeps instruction and data caches coherent in hardware, so code
// written through the data-cache path is immediately fetchable.
func FlushICache(base unsafe.Pointer, n int) {}
