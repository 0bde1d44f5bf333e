package context

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	ctx := context.Background()
	require.Equal(t, defaultLogger, Logger(ctx))
	require.Nil(t, Registry(ctx))
	require.Equal(t, os.Stdout, Output(ctx))
}

func TestValues(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewNopLogger()
	reg := prometheus.NewRegistry()

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRegistry(ctx, reg)
	ctx = WithOutput(ctx, &buf)

	require.Equal(t, logger, Logger(ctx))
	require.Equal(t, reg, Registry(ctx))
	require.Same(t, &buf, Output(ctx))
}
