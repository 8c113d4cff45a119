//go:build windows

package native

import "golang.org/x/sys/windows"

// PageSize reports the host's memory page granularity, the same value
// mmap-go's own Windows backend consults when rounding an allocation
// request up to a VirtualAlloc-friendly size.
func PageSize() int {
	var info windows.SystemInfo
	windows.GetSystemInfo(&info)
	return int(info.PageSize)
}
