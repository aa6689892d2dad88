package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("debug", &buf).WithComponent("synth")
	l.Infow("rows.generated", map[string]any{"table": "Addresses", "rows": 10})

	line := strings.TrimSpace(buf.String())
	require.NotEmpty(t, line)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "info", rec["level"])
	assert.Equal(t, "rows.generated", rec["msg"])
	assert.Equal(t, "synth", rec["component"])
	assert.Equal(t, "Addresses", rec["table"])
	assert.EqualValues(t, 10, rec["rows"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("warn", &buf)
	l.Info("dropped %d", 1)
	l.Debugw("dropped", nil)
	l.Warn("column %s degraded", "Payload")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "warning", rec["level"])
	assert.Equal(t, "column Payload degraded", rec["msg"])
}

func TestOrDiscardAcceptsNil(t *testing.T) {
	l := OrDiscard(nil)
	require.NotNil(t, l)
	l.Error("nothing happens")
}
