package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":       zapcore.InfoLevel,
		"debug":  zapcore.DebugLevel,
		"WARN":   zapcore.WarnLevel,
		" error": zapcore.ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	require.Error(t, err)
}

func TestNewHonoursLevel(t *testing.T) {
	logger, err := New(Config{Level: "warn"})
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	require.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	dev, err := New(Config{Level: "debug", Development: true})
	require.NoError(t, err)
	require.True(t, dev.Core().Enabled(zapcore.DebugLevel))

	_, err = New(Config{Level: "loud"})
	require.Error(t, err)
}
