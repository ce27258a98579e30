// Package logger provides the structured logging interface used by every
// termninja component, backed by zerolog. Output goes to the console and,
// when a log directory is configured, to daily-rotated files.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Field represents a key-value pair for structured log output.
type Field struct {
	Key   string
	Value any
}

// Logger is an interface for structured logging. Implementations write log
// entries at different levels and support attaching structured fields.
// Loggers may be derived with With for component-scoped or
// connection-scoped fields.
type Logger interface {
	// Debug logs a message at debug level with optional structured fields.
	Debug(msg string, fields ...Field)

	// Info logs a message at info level with optional structured fields.
	Info(msg string, fields ...Field)

	// Warn logs a message at warn level with optional structured fields.
	Warn(msg string, fields ...Field)

	// Error logs a message at error level with optional structured fields.
	Error(msg string, fields ...Field)

	// With returns a new Logger that includes the given fields in all
	// subsequent log entries. The original Logger is unchanged.
	//
	// Parameters:
	//   - fields: Key-value pairs to attach to the derived logger
	//
	// Returns:
	//   - A new Logger with the specified fields
	With(fields ...Field) Logger

	// Close releases resources held by the logger (e.g. file handles).
	// It is safe to call multiple times; derived loggers never close the
	// writer they share with their parent.
	//
	// Returns:
	//   - An error if closing resources fails
	Close() error
}

// Options configures a Logger built by New.
type Options struct {
	// Service is added as the "service" field of every entry and is used
	// as the prefix of rotated log file names.
	Service string
	// Level is the minimum level that is written.
	Level zerolog.Level
	// Console renders human-friendly lines instead of JSON on Output.
	Console bool
	// Output receives the primary stream. Defaults to os.Stdout.
	Output io.Writer
	// Dir enables daily-rotated file output in the given directory.
	Dir string
}

// zerologLogger is the zerolog-based implementation of Logger.
type zerologLogger struct {
	logger         zerolog.Logger
	fileWriter     *DailyFileWriter
	ownsFileWriter bool
}

// New builds a Logger from opts. When opts.Dir is set the directory is
// created if needed and entries are duplicated to a DailyFileWriter.
//
// Parameters:
//   - opts: Output, level and rotation settings
//
// Returns:
//   - The Logger, or an error if the log directory or file cannot be prepared
func New(opts Options) (Logger, error) {
	var out io.Writer = os.Stdout
	if opts.Output != nil {
		out = opts.Output
	}

	if opts.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	var fileWriter *DailyFileWriter
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		fw, err := NewDailyFileWriter(opts.Service, opts.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to create file writer: %w", err)
		}

		fileWriter = fw
		out = io.MultiWriter(out, fw)
	}

	return &zerologLogger{
		logger:         zerolog.New(out).With().Str("service", opts.Service).Timestamp().Logger().Level(opts.Level),
		fileWriter:     fileWriter,
		ownsFileWriter: fileWriter != nil,
	}, nil
}

// NewNop returns a Logger that discards everything. Used by tests and as
// the fallback for components constructed without a logger.
func NewNop() Logger {
	return &zerologLogger{logger: zerolog.Nop()}
}

// ParseLevel maps a level name such as "debug" or "WARN" to a zerolog level.
// Unknown or empty names resolve to info.
func ParseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}

	return level
}

// Err is shorthand for the conventional "error" field.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Debug implements Logger.
func (z *zerologLogger) Debug(msg string, fields ...Field) {
	z.logger.Debug().Fields(toMap(fields)).Msg(msg)
}

// Info implements Logger.
func (z *zerologLogger) Info(msg string, fields ...Field) {
	z.logger.Info().Fields(toMap(fields)).Msg(msg)
}

// Warn implements Logger.
func (z *zerologLogger) Warn(msg string, fields ...Field) {
	z.logger.Warn().Fields(toMap(fields)).Msg(msg)
}

// Error implements Logger.
func (z *zerologLogger) Error(msg string, fields ...Field) {
	z.logger.Error().Fields(toMap(fields)).Msg(msg)
}

// With implements Logger.
func (z *zerologLogger) With(fields ...Field) Logger {
	return &zerologLogger{
		logger:         z.logger.With().Fields(toMap(fields)).Logger(),
		fileWriter:     z.fileWriter,
		ownsFileWriter: false,
	}
}

// Close implements Logger.
func (z *zerologLogger) Close() error {
	if z.fileWriter != nil && z.ownsFileWriter {
		return z.fileWriter.Close()
	}

	return nil
}

// toMap converts a slice of Field into a map for zerolog. Error values are
// rendered with Error() so they survive JSON encoding.
func toMap(fields []Field) map[string]any {
	if len(fields) == 0 {
		return nil
	}

	m := make(map[string]any, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok && err != nil {
			m[f.Key] = err.Error()
			continue
		}

		m[f.Key] = f.Value
	}

	return m
}
