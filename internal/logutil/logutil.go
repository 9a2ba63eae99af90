// Package logutil provides the default host.Logger the core ships with:
// a console sink that colorizes its four levels only when standard error
// is a real terminal. Color-support detection follows the teacher's
// detectColorLevel (NO_COLOR, TERM=dumb, and isatty/Cygwin checks),
// collapsed to the on/off distinction this framework actually needs.
package logutil

import (
	"fmt"
	"os"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/quillbyte/classmorph/internal/host"
)

var (
	colorOnce    sync.Once
	colorEnabled bool
)

func detectColor(f *os.File) bool {
	colorOnce.Do(func() {
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			colorEnabled = false
			return
		}
		if os.Getenv("TERM") == "dumb" {
			colorEnabled = false
			return
		}
		colorEnabled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	})
	return colorEnabled
}

const (
	ansiReset  = "\x1b[0m"
	ansiBlue   = "\x1b[34m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
	ansiBold   = "\x1b[1m"
)

func levelColor(l host.LogLevel) string {
	switch l {
	case host.LevelInfo:
		return ansiBlue
	case host.LevelWarn:
		return ansiYellow
	case host.LevelError, host.LevelFatal:
		return ansiBold + ansiRed
	default:
		return ""
	}
}

// ConsoleLogger writes every level to out, colorizing the level tag when
// out is a terminal (spec §6: four-level logger, no sink of its own beyond
// this default).
type ConsoleLogger struct {
	out   *os.File
	color bool
}

// NewConsoleLogger returns a ConsoleLogger writing to os.Stderr.
func NewConsoleLogger() *ConsoleLogger {
	return &ConsoleLogger{out: os.Stderr, color: detectColor(os.Stderr)}
}

func (c *ConsoleLogger) write(level host.LogLevel, err error, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	tag := level.String()
	if c.color {
		tag = levelColor(level) + tag + ansiReset
	}
	if err != nil {
		fmt.Fprintf(c.out, "[%s] classmorph: %s: %v\n", tag, msg, err)
		return
	}
	fmt.Fprintf(c.out, "[%s] classmorph: %s\n", tag, msg)
}

func (c *ConsoleLogger) Info(format string, args ...interface{}) {
	c.write(host.LevelInfo, nil, format, args...)
}

func (c *ConsoleLogger) Warn(format string, args ...interface{}) {
	c.write(host.LevelWarn, nil, format, args...)
}

func (c *ConsoleLogger) Error(err error, format string, args ...interface{}) {
	c.write(host.LevelError, err, format, args...)
}

func (c *ConsoleLogger) Fatal(err error, format string, args ...interface{}) {
	c.write(host.LevelFatal, err, format, args...)
}

var _ host.Logger = (*ConsoleLogger)(nil)
