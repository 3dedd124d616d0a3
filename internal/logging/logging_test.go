package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labflow/internal/core"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, log.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, log.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, log.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, log.InfoLevel, ParseLevel(""))
	assert.Equal(t, log.InfoLevel, ParseLevel("bogus"))
}

func TestNew_RespectsLevel(t *testing.T) {
	w := &core.LogBuffer{}
	logger := New(w, "warn")

	logger.Info("hidden")
	logger.Warn("wait overrun", "step", 3)

	out := w.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "wait overrun")
	assert.Contains(t, out, "step=3")
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger, closer, err := OpenFile(path, "info")
	require.NoError(t, err)

	logger.Info("experiment started")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "experiment started")
}
