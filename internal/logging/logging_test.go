package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLevels(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "warn", "console")
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown")
	_ = l.Sync()

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "WARN")
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "debug", "json")
	require.NoError(t, err)

	l.Debug("chunk sent")
	_ = l.Sync()

	assert.True(t, strings.HasPrefix(buf.String(), "{"), "json output expected, got %q", buf.String())
	assert.Contains(t, buf.String(), `"msg":"chunk sent"`)
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud", "console")
	assert.Error(t, err)

	_, err = New(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}

func TestSet(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "info", "console")
	require.NoError(t, err)

	Set(l)
	t.Cleanup(func() { Set(nil) })

	L().Info("processing chunks", zap.Int("chunks", 3))
	S().Infow("retrying request", "attempt", 2)
	L().Debug("not written")
	Sync()

	out := buf.String()
	assert.Contains(t, out, "processing chunks")
	assert.Contains(t, out, `"chunks": 3`)
	assert.Contains(t, out, `"attempt": 2`)
	assert.NotContains(t, out, "not written")
}

func TestSetNilDiscards(t *testing.T) {
	Set(nil)
	assert.NotPanics(t, func() { L().Info("dropped") })
}
