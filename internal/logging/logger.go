// Package logging builds the zap logger used across specify.
//
// Logs always go to stderr: stdout carries command output and, under
// "serve", the MCP stdio transport.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects level and encoding.
type Config struct {
	Level  string // debug | info | warn | error
	Format string // console | json
	// Output defaults to stderr.
	Output io.Writer
}

// New creates a logger writing to cfg.Output.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(orDefault(cfg.Level, "warn"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var encoder zapcore.Encoder
	switch orDefault(cfg.Format, "console") {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig())
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig())
	default:
		return nil, fmt.Errorf("invalid log format %q: must be console or json", cfg.Format)
	}

	var out zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	if cfg.Output != nil {
		out = zapcore.AddSync(cfg.Output)
	}
	core := zapcore.NewCore(encoder, out, level)
	return zap.New(core), nil
}

// OrNop returns l, or a no-op logger when l is nil. Components call this
// in their constructors so a nil logger is always safe.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func encoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	return ec
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
