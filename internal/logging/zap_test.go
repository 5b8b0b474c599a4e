package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewRespectsVerbosity(t *testing.T) {
	t.Parallel()

	for _, json := range []bool{false, true} {
		quiet, err := New(Options{JSON: json})
		require.NoError(t, err)
		require.False(t, quiet.Core().Enabled(zapcore.DebugLevel))
		require.True(t, quiet.Core().Enabled(zapcore.InfoLevel))

		verbose, err := New(Options{Verbose: true, JSON: json})
		require.NoError(t, err)
		require.True(t, verbose.Core().Enabled(zapcore.DebugLevel))
	}
}
