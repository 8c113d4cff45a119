package trampoline

import (
	"sync"

	"go.uber.org/zap"
)

var (
	processLogger     *zap.Logger
	processLoggerOnce sync.Once
)

// defaultLogger returns the package-wide fallback diagnostic sink. It is
// a no-op logger unless SetLogger has installed one, the same
// lazily-initialized pattern engine.Logger()/linker.Logger() use in the
// wippyai wasm runtime.
func defaultLogger() *zap.Logger {
	processLoggerOnce.Do(func() {
		if processLogger == nil {
			processLogger = zap.NewNop()
		}
	})
	return processLogger
}

// SetLogger installs the process-wide default diagnostic sink used by
// every Trampoline constructed without an explicit WithLogger option.
// Passing nil resets it back to a no-op logger.
func SetLogger(l *zap.Logger) {
	processLoggerOnce.Do(func() {})
	if l == nil {
		l = zap.NewNop()
	}
	processLogger = l
}
