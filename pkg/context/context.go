// Package context carries the logger, metrics registry and output writer of
// a gt command through a context.Context.
package context

import (
	"context"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
)

type contextKey int

const (
	loggerKey contextKey = iota
	registryKey
	outputKey
)

var defaultLogger = log.NewLogfmtLogger(os.Stderr)

func WithLogger(ctx context.Context, logger log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

func Logger(ctx context.Context) log.Logger {
	if logger, ok := ctx.Value(loggerKey).(log.Logger); ok {
		return logger
	}
	return defaultLogger
}

// WithRegistry attaches reg. A nil reg disables metrics registration.
func WithRegistry(ctx context.Context, reg prometheus.Registerer) context.Context {
	return context.WithValue(ctx, registryKey, reg)
}

func Registry(ctx context.Context) prometheus.Registerer {
	if reg, ok := ctx.Value(registryKey).(prometheus.Registerer); ok {
		return reg
	}
	return nil
}

func WithOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, outputKey, w)
}

// Output is where command results are written, stdout by default.
func Output(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(outputKey).(io.Writer); ok {
		return w
	}
	return os.Stdout
}
