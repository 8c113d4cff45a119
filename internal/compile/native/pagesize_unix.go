//go:build !windows

package native

import "golang.org/x/sys/unix"

// PageSize reports the host's memory page granularity. Allocate uses it
// to round each request up to whole pages before mapping.
func PageSize() int { return unix.Getpagesize() }
