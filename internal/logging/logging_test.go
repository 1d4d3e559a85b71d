package logging_test

import (
	"testing"

	"github.com/jrsteele09/go-session-gate/internal/logging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, logging.ParseLevel("DEBUG"))
	require.Equal(t, zerolog.WarnLevel, logging.ParseLevel(" warning "))
	require.Equal(t, zerolog.Disabled, logging.ParseLevel("off"))
	require.Equal(t, zerolog.InfoLevel, logging.ParseLevel("nonsense"))
}
