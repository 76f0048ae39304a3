// Package logger provides a lightweight, centralized logging facility
// with configurable verbosity levels.
//
// The package keeps a small printf-style API (Errorf, Warnf, Infof, Debugf,
// Tracef) so call sites stay free of formatting logic, while output is
// handled by a shared logrus logger writing to stderr.
//
// Verbosity levels (in increasing order):
//
//	Error < Info < Debug < Trace
//
// Example usage:
//
//	logger.SetVerbosity(2) // Debug
//	logger.Infof("event=batch_start rows=%d", n)
//	logger.WithFields(logrus.Fields{"ticker": "AAPL"}).Debug("chain fetched")
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Level represents a logging verbosity level.
// Higher values mean more verbose logging.
type Level int

const (
	Error Level = iota // Error logs only critical failures.
	Info               // Info logs high-level application progress.
	Debug              // Debug logs detailed diagnostic information.
	Trace              // Trace logs very fine-grained execution details.
)

// base is the shared logrus logger behind the package functions.
var base = logrus.New()

func init() {
	// Logs go to stderr so tables and CSV written to stdout stay clean.
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
	})
	SetVerbosity(int(Info))
}

// SetVerbosity sets the global logging verbosity.
// Typically called once during application startup
// (e.g. after parsing CLI flags or loading config).
// Values outside the known range are clamped.
func SetVerbosity(v int) {
	switch {
	case v <= int(Error):
		base.SetLevel(logrus.ErrorLevel)
	case v == int(Info):
		base.SetLevel(logrus.InfoLevel)
	case v == int(Debug):
		base.SetLevel(logrus.DebugLevel)
	default:
		base.SetLevel(logrus.TraceLevel)
	}
}

// Verbosity reports the active verbosity level.
func Verbosity() Level {
	switch base.GetLevel() {
	case logrus.TraceLevel:
		return Trace
	case logrus.DebugLevel:
		return Debug
	case logrus.InfoLevel, logrus.WarnLevel:
		return Info
	default:
		return Error
	}
}

// SetOutput redirects log output. Tests use it to silence or capture logs.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// WithFields returns an entry carrying structured key/value pairs.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return base.WithFields(fields)
}

// Errorf logs an error-level message.
// Use this for failures that require attention.
func Errorf(format string, args ...any) {
	base.Errorf(format, args...)
}

// Warnf logs a warning. Warnings are shown at Info verbosity and above.
func Warnf(format string, args ...any) {
	base.Warnf(format, args...)
}

// Infof logs an informational message.
// Use this for major lifecycle events.
func Infof(format string, args ...any) {
	base.Infof(format, args...)
}

// Debugf logs debugging information.
func Debugf(format string, args ...any) {
	base.Debugf(format, args...)
}

// Tracef logs very detailed execution traces.
// Use this sparingly due to high volume.
func Tracef(format string, args ...any) {
	base.Tracef(format, args...)
}
