// Package logging builds the process-wide run logger.
//
// A run has exactly one sink: an append-only log file owned by the target
// user plus a pretty console writer. The logger is created once at startup
// and handed to every component; nothing in archsetup reads a global logger.
// Writes are best-effort: a sink that fails to write is silently skipped so
// logging can never fail a task.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Options configures Setup.
type Options struct {
	// Verbosity maps -v counts to the console level: 0 INFO, 1 DEBUG, 2+ TRACE.
	Verbosity int
	// FilePath is the append-only log file. Empty disables the file sink.
	FilePath string
	// Console receives human readable output. Defaults to os.Stderr.
	Console io.Writer
	// NoColor disables ANSI colors on the console.
	NoColor bool
	// UID and GID own the log file and its directory. Negative values skip chown.
	UID int
	GID int
	// Fields are attached to every event (run id, for example).
	Fields map[string]string
	// Hooks observe every emitted event.
	Hooks []zerolog.Hook
}

// Sink owns the run logger and its file handle.
type Sink struct {
	logger zerolog.Logger
	file   *os.File
	path   string
}

// Setup configures the run logger. It never fails: when the log file cannot
// be created the logger falls back to console only and says so.
func Setup(opts Options) *Sink {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: time.Kitchen,
		NoColor:    opts.NoColor,
	}

	writers := []io.Writer{sinkWriter{w: consoleWriter, min: ConsoleLevel(opts.Verbosity)}}
	loggerLevel := ConsoleLevel(opts.Verbosity)

	var file *os.File
	var fileErr error
	if opts.FilePath != "" {
		file, fileErr = openLogFile(opts.FilePath, opts.UID, opts.GID)
		if fileErr == nil {
			fileWriter := zerolog.ConsoleWriter{
				Out:        file,
				TimeFormat: time.RFC3339,
				NoColor:    true,
			}
			writers = append(writers, sinkWriter{w: fileWriter, min: fileLevel(opts.Verbosity)})
			if fileLevel(opts.Verbosity) < loggerLevel {
				loggerLevel = fileLevel(opts.Verbosity)
			}
		}
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(loggerLevel).
		With().
		Timestamp()
	for k, v := range opts.Fields {
		ctx = ctx.Str(k, v)
	}
	logger := ctx.Logger()
	for _, h := range opts.Hooks {
		logger = logger.Hook(h)
	}

	if fileErr != nil {
		logger.Warn().Err(fileErr).Str("path", opts.FilePath).Msg("Failed to create log file, logging to console only")
	}

	logger.Debug().Int("verbosity", opts.Verbosity).Str("logFile", opts.FilePath).Msg("Logger initialized")

	return &Sink{logger: logger, file: file, path: opts.FilePath}
}

// Logger returns the run logger.
func (s *Sink) Logger() zerolog.Logger {
	return s.logger
}

// Path returns the log file path, or "" when logging to console only.
func (s *Sink) Path() string {
	if s.file == nil {
		return ""
	}
	return s.path
}

// Close flushes and closes the log file.
func (s *Sink) Close() error {
	if s.file == nil {
		return nil
	}
	_ = s.file.Sync()
	return s.file.Close()
}

// ConsoleLevel maps a -v count to the console level.
func ConsoleLevel(verbosity int) zerolog.Level {
	switch {
	case verbosity <= 0:
		return zerolog.InfoLevel
	case verbosity == 1:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

func fileLevel(verbosity int) zerolog.Level {
	if verbosity >= 2 {
		return zerolog.TraceLevel
	}
	return zerolog.DebugLevel
}

// openLogFile creates the log file and its parent directories
func openLogFile(logPath string, uid, gid int) (*os.File, error) {
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	if uid >= 0 && gid >= 0 {
		// Ownership is cosmetic for the user reading the log later.
		_ = os.Chown(logDir, uid, gid)
		_ = os.Chown(logPath, uid, gid)
	}

	return file, nil
}

// sinkWriter filters by level and swallows write errors.
type sinkWriter struct {
	w   io.Writer
	min zerolog.Level
}

func (s sinkWriter) Write(p []byte) (int, error) {
	_, _ = s.w.Write(p)
	return len(p), nil
}

func (s sinkWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < s.min {
		return len(p), nil
	}
	return s.Write(p)
}

// Component returns a child logger tagged with the component name
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// LogCommand logs a command execution with its arguments
func LogCommand(logger zerolog.Logger, cmd string, args []string) {
	logger.Debug().
		Str("command", cmd).
		Strs("args", args).
		Msg("Executing command")
}

// LogDuration logs the duration of an operation
func LogDuration(logger zerolog.Logger, start time.Time, operation string) {
	logger.Debug().
		Str("operation", operation).
		Dur("duration", time.Since(start)).
		Msg("Operation completed")
}

// LogOperationStart logs the start of an operation and returns a function to log its completion
func LogOperationStart(logger zerolog.Logger, operation string) func() {
	start := time.Now()
	logger.Debug().
		Str("operation", operation).
		Msg("Operation started")

	return func() {
		LogDuration(logger, start, operation)
	}
}
