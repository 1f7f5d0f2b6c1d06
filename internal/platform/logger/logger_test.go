package logger_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/mastery-api/internal/config"
	"github.com/phrazzld/mastery-api/internal/platform/logger"
)

func TestSetup(t *testing.T) {
	testCases := []struct {
		name     string
		logLevel string
	}{
		{name: "debug level", logLevel: "debug"},
		{name: "info level", logLevel: "info"},
		{name: "warn level", logLevel: "warn"},
		{name: "error level", logLevel: "error"},
		{name: "mixed case", logLevel: "DeBuG"},
		{name: "invalid level falls back to info", logLevel: "verbose"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			log, err := logger.Setup(config.ServerConfig{Port: 8080, LogLevel: tc.logLevel})
			require.NoError(t, err)
			require.NotNil(t, log, "Setup must return a usable logger")
			assert.Same(t, log, slog.Default(), "Setup should install the logger as the default")
		})
	}
}

func TestWithLoggerAndFromContext(t *testing.T) {
	custom := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx := logger.WithLogger(context.Background(), custom)
	assert.Same(t, custom, logger.FromContext(ctx), "FromContext should return the stored logger")

	// A bare context falls back to the default logger.
	assert.NotNil(t, logger.FromContext(context.Background()))

	assert.Panics(t, func() {
		logger.WithLogger(context.Background(), nil)
	}, "storing a nil logger should panic")
}

func TestFromContextOrDefault(t *testing.T) {
	custom := slog.New(slog.NewTextHandler(os.Stderr, nil))
	fallback := slog.New(slog.NewTextHandler(os.Stderr, nil))

	t.Run("context logger wins", func(t *testing.T) {
		ctx := logger.WithLogger(context.Background(), custom)
		assert.Same(t, custom, logger.FromContextOrDefault(ctx, fallback))
	})

	t.Run("falls back to provided default", func(t *testing.T) {
		assert.Same(t, fallback, logger.FromContextOrDefault(context.Background(), fallback))
	})

	t.Run("nil default falls back to global", func(t *testing.T) {
		assert.NotNil(t, logger.FromContextOrDefault(context.Background(), nil))
	})
}
