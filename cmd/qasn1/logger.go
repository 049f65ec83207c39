package main

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger carries diagnostic output. Library packages never log; only the
// command layer does.
var logger = zap.NewNop()

// newLogger builds a console logger writing to w. Without verbose only
// warnings and errors are shown.
func newLogger(verbose bool, w io.Writer) *zap.Logger {
	cfg := zap.NewProductionEncoderConfig()
	level := zapcore.WarnLevel
	if verbose {
		cfg = zap.NewDevelopmentEncoderConfig()
		level = zapcore.DebugLevel
	}
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.Lock(zapcore.AddSync(w)),
		zap.NewAtomicLevelAt(level),
	)
	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if verbose {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(core, opts...).Named("qasn1")
}
