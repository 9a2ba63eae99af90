// Package host defines the contracts the transformation core consumes from
// its external collaborators (spec §1, §6): the class-loading/instrumentation
// host, the class provider used for wildcard registration, the logger, and
// the process-wide fail strategy. The core never implements these; it only
// depends on the interfaces, so a host can supply its own loader, its own
// log sink, and its own policy without the core importing anything concrete.
package host

import "context"

// ClassProvider exposes the classes a host can hand the framework, used
// for wildcard transformer registration (spec §6).
type ClassProvider interface {
	// GetClass returns the raw bytes of the named class (dot-form or
	// slash-form, implementations should accept both).
	GetClass(name string) ([]byte, error)
	// GetAllClasses returns every known class, as a map of internal name
	// to a lazily-evaluated byte loader (avoids reading bytes that a
	// wildcard expansion ends up skipping).
	GetAllClasses() map[string]func() ([]byte, error)
}

// InstrumentationHost is the class-loading/instrumentation contract the
// core is driven through (spec §6). Only `transform` is part of the core's
// surface; Redefine is used solely by the hotswap side channel (spec §6
// "Hotswap"), never by the synchronous load-time path.
type InstrumentationHost interface {
	// Redefine asks the host to redefine an already-loaded class with new
	// bytes, used by hotswap re-transformation.
	Redefine(ctx context.Context, internalName string, newBytes []byte) error
}

// LogLevel is one of the four levels spec §6 mandates.
type LogLevel int

const (
	LevelInfo LogLevel = iota
	LevelWarn
	LevelError
	LevelFatal
)

func (l LogLevel) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger is the four-level, format-string logging contract (spec §6). The
// core only ever calls through this interface; it ships no sink of its own
// beyond internal/logutil's default ConsoleLogger.
type Logger interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(err error, format string, args ...interface{})
	Fatal(err error, format string, args ...interface{})
}

// FailStrategy is the process-wide handler-error policy (spec §6/§7).
type FailStrategy int

const (
	// Continue logs and proceeds with remaining handlers/transformers.
	Continue FailStrategy = iota
	// Cancel returns nil for the whole class (original bytes pass through
	// unchanged).
	Cancel
	// Exit terminates the process.
	Exit
)

func (s FailStrategy) String() string {
	switch s {
	case Continue:
		return "CONTINUE"
	case Cancel:
		return "CANCEL"
	case Exit:
		return "EXIT"
	default:
		return "UNKNOWN"
	}
}

// ParseFailStrategy parses the three accepted spellings, defaulting to
// Continue on an empty string (the framework's least-surprising default).
func ParseFailStrategy(s string) (FailStrategy, bool) {
	switch s {
	case "", "CONTINUE":
		return Continue, true
	case "CANCEL":
		return Cancel, true
	case "EXIT":
		return Exit, true
	default:
		return 0, false
	}
}
