package logger

import "sync/atomic"

// active holds the process-wide default logger. It starts out discarding,
// matching the teacher's "silent until configured" default; nothing in
// lattice replaces it on its own (latticedb's WithLogger sets only that
// DB's logger), so it changes only through SetDefault, and library code
// that logs through the package-level helpers below never panics or
// prints unprompted. Every value is stored wrapped in a loggerBox, since
// atomic.Value panics when later stores change the concrete type.
var active atomic.Value

type loggerBox struct{ l Logger }

func init() {
	active.Store(loggerBox{Discard()})
}

// SetDefault replaces the package-wide default logger.
func SetDefault(l Logger) {
	if l == nil {
		l = Discard()
	}
	active.Store(loggerBox{l})
}

// Default returns the current package-wide logger.
func Default() Logger {
	return active.Load().(loggerBox).l
}

// LogDebug, LogInfo, LogWarn, and LogError log through Default — named
// after the teacher's utils.LogDebug/LogInfo/LogWarn/LogError convenience
// functions rather than logger's own unprefixed Debug/Info/Warn/Error, to
// keep them unambiguous at call sites that also import fmt/log.
func LogDebug(format string, args ...any) { Default().Debug(format, args...) }
func LogInfo(format string, args ...any)  { Default().Info(format, args...) }
func LogWarn(format string, args ...any)  { Default().Warn(format, args...) }
func LogError(format string, args ...any) { Default().Error(format, args...) }
