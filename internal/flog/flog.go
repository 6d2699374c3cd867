// Package flog is a process-wide, channel-buffered logger. Formatting and
// level filtering happen on the caller's goroutine; writing to stdout
// happens on a single dedicated goroutine so that no task ever blocks on
// I/O just to emit a log line.
package flog

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Level int

const None Level = -1

const (
	Debug Level = iota
	Info
	Warn
	Error
	Fatal
)

var (
	minLevel  atomic.Int64
	logCh     = make(chan string, 1024)
	dropped   atomic.Uint64
	startOnce sync.Once
)

func init() {
	minLevel.Store(int64(Info))
}

// Dropped returns the number of log messages dropped because the internal
// channel was full.
func Dropped() uint64 { return dropped.Load() }

var levelStrings = [...]string{
	Debug: "DEBUG",
	Info:  "INFO",
	Warn:  "WARN",
	Error: "ERROR",
	Fatal: "FATAL",
}

// SetLevel sets the minimum level that will be emitted and starts the
// writer goroutine on first use. Passing None disables all logging.
func SetLevel(l Level) {
	minLevel.Store(int64(l))
	if l == None {
		return
	}
	startOnce.Do(func() {
		go func() {
			for msg := range logCh {
				fmt.Fprint(os.Stdout, msg)
			}
		}()
	})
}

// LevelFromEnv parses a RUST_LOG-style string ("error", "warn", "info",
// "debug", "trace") into a Level, defaulting to Info when name is empty or
// unrecognized. "trace" maps to Debug, matching the teacher's five-level
// scheme which has no separate trace tier.
func LevelFromEnv(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace", "debug":
		return Debug
	case "info":
		return Info
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	case "":
		return Info
	default:
		return Info
	}
}

// Init reads the given environment variable (conventionally RUST_LOG) and
// calls SetLevel accordingly. The CLI calls it before starting the
// supervisor.
func Init(envVar string) {
	SetLevel(LevelFromEnv(os.Getenv(envVar)))
}

func logf(level Level, format string, args ...any) {
	cur := Level(minLevel.Load())
	if cur == None || level < cur {
		return
	}

	if len(logCh) == cap(logCh) {
		dropped.Add(1)
		return
	}

	var levelStr string
	if int(level) < len(levelStrings) {
		levelStr = levelStrings[level]
	} else {
		levelStr = "UNKNOWN"
	}

	now := time.Now().Format("2006-01-02 15:04:05.000")
	line := fmt.Sprintf("%s [%s] %s\n", now, levelStr, fmt.Sprintf(format, args...))

	select {
	case logCh <- line:
	default:
		dropped.Add(1)
	}
}

func (l Level) String() string {
	if int(l) >= 0 && int(l) < len(levelStrings) {
		return levelStrings[l]
	}
	if l == None {
		return "None"
	}
	return "UNKNOWN"
}

func Debugf(format string, args ...any) { logf(Debug, format, args...) }
func Infof(format string, args ...any)  { logf(Info, format, args...) }
func Warnf(format string, args ...any)  { logf(Warn, format, args...) }
func Errorf(format string, args ...any) { logf(Error, format, args...) }

// Fatalf logs at Fatal level and terminates the process with a non-zero
// exit code. Used only for startup-time misconfiguration (InvalidConfig,
// Bind); runtime errors never call Fatalf.
func Fatalf(format string, args ...any) {
	logf(Fatal, format, args...)
	time.Sleep(10 * time.Millisecond)
	os.Exit(1)
}

// Close drains and stops the writer goroutine. Used by tests only; the
// long-running process never calls it.
func Close() { close(logCh) }
