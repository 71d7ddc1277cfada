package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileSink configures an optional rotated log file written alongside stdout.
type FileSink struct {
	Path       string `toml:"Path" yaml:"path"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"max_size_mb"`
	MaxBackups int    `toml:"MaxBackups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"max_age_days"`
	Compress   bool   `toml:"Compress" yaml:"compress"`
}

// Options extends Setup with a level and file sink.
type Options struct {
	Service string
	Env     string
	Level   string
	File    *FileSink
	Output  io.Writer
}

// Setup configures the standard library logger to emit structured JSON on
// stdout and returns the slog.Logger used by the engines and daemons.
func Setup(service, env string) *slog.Logger {
	logger, _ := SetupWithOptions(Options{Service: service, Env: env})
	return logger
}

// SetupWithOptions is Setup with a configurable level and an optional
// lumberjack-rotated file. The returned closer releases the file sink.
func SetupWithOptions(opts Options) (*slog.Logger, io.Closer) {
	var out io.Writer = os.Stdout
	if opts.Output != nil {
		out = opts.Output
	}
	var closer io.Closer = nopCloser{}
	if opts.File != nil && strings.TrimSpace(opts.File.Path) != "" {
		rotated := &lumberjack.Logger{
			Filename:   opts.File.Path,
			MaxSize:    opts.File.MaxSizeMB,
			MaxBackups: opts.File.MaxBackups,
			MaxAge:     opts.File.MaxAgeDays,
			Compress:   opts.File.Compress,
		}
		out = io.MultiWriter(out, rotated)
		closer = rotated
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			case slog.LevelKey:
				return slog.String("severity", strings.ToUpper(attr.Value.String()))
			case slog.MessageKey:
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})

	attrs := []slog.Attr{slog.String("service", strings.TrimSpace(opts.Service))}
	if env := strings.TrimSpace(opts.Env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}
	withArgs := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		withArgs = append(withArgs, attr)
	}

	base := slog.New(handler).With(withArgs...)
	slog.SetDefault(base)

	stdBridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base, closer
}

// ParseLevel maps debug/info/warn/error onto slog levels, defaulting to info.
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops every record. Engines fall back to it
// when no logger is wired.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
