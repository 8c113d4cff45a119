// Package pick selects the ABI code generator for the host platform.
// It lives apart from internal/compile because it imports every
// concrete generator (aapcs, sysv, win64), each of which imports
// internal/compile for the Generator/Convention/Slot/Layout types;
// keeping the selection logic here avoids an import cycle.
package pick

import (
	"runtime"

	"github.com/nativeffi/trampoline/internal/compile"
	"github.com/nativeffi/trampoline/internal/compile/aapcs"
	"github.com/nativeffi/trampoline/internal/compile/sysv"
	"github.com/nativeffi/trampoline/internal/compile/win64"
)

// variant pairs a Generator with the GOOS/GOARCH combinations it
// targets, mirroring the teacher's compilerVariant/nativeBackend
// dispatch in exec/native_compile.go.
type variant struct {
	OS, Arch string
	Gen      compile.Generator
}

var variants = []variant{
	{OS: "linux", Arch: "amd64", Gen: sysv.New()},
	{OS: "darwin", Arch: "amd64", Gen: sysv.New()},
	{OS: "freebsd", Arch: "amd64", Gen: sysv.New()},
	{OS: "windows", Arch: "amd64", Gen: win64.New()},
	{OS: "linux", Arch: "arm64", Gen: aapcs.New()},
	{OS: "darwin", Arch: "arm64", Gen: aapcs.New()},
}

// Pick returns the code Generator for the running GOOS/GOARCH
// combination. It returns false if no generator targets the host
// platform.
func Pick() (compile.Generator, bool) {
	for _, v := range variants {
		if v.OS == runtime.GOOS && v.Arch == runtime.GOARCH {
			return v.Gen, true
		}
	}
	return nil, false
}
