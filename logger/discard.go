package logger

import "io"

// discardLogger drops every line — lattice's equivalent of the teacher's
// utils.NullLogger, a stateless sink used by default before a caller ever
// attaches a real logger, and by tests that don't want console noise.
type discardLogger struct{}

// Discard returns a Logger that does nothing. It is lattice's zero-value
// logger: SetLevel/GetLevel are no-ops reporting LogLevelNone, since there
// is never anything to filter.
func Discard() Logger { return discardLogger{} }

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Info(string, ...any)  {}
func (discardLogger) Warn(string, ...any)  {}
func (discardLogger) Error(string, ...any) {}

func (discardLogger) SetLevel(LogLevel)    {}
func (discardLogger) GetLevel() LogLevel   { return LogLevelNone }
func (discardLogger) SetOutput(io.Writer)  {}
