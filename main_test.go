package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmdArgs(t *testing.T) {
	cmd := newRootCmd()
	require.NotNil(t, cmd.Args)

	assert.NoError(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"9090"}))
	assert.Error(t, cmd.Args(cmd, []string{"9090", "extra"}))

	f := cmd.Flags().Lookup("addr")
	require.NotNil(t, f)
	assert.Equal(t, "", f.DefValue)
}

func TestSetupLoggingLevels(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cases := []struct {
		level, format string
		enabled       slog.Level
		disabled      slog.Level
	}{
		{"debug", "text", slog.LevelDebug, slog.LevelDebug - 1},
		{"warn", "json", slog.LevelWarn, slog.LevelInfo},
		{"error", "", slog.LevelError, slog.LevelWarn},
		{"bogus", "text", slog.LevelInfo, slog.LevelDebug},
	}
	for _, tc := range cases {
		setupLogging(tc.level, tc.format)
		h := slog.Default().Handler()
		assert.True(t, h.Enabled(context.Background(), tc.enabled), "level %q", tc.level)
		assert.False(t, h.Enabled(context.Background(), tc.disabled), "level %q", tc.level)
	}
}
