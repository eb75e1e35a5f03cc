package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitAndComponent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	Init("warn", "json")
	t.Cleanup(func() { Init("info", "json") })

	log := Component("orchestrator")
	log.Info().Msg("hidden")
	log.Warn().Str("step", "lessons").Msg("shown")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "orchestrator", entry["component"])
	assert.Equal(t, "lessons", entry["step"])
	assert.Equal(t, "shown", entry["message"])
}

func TestInitLevels(t *testing.T) {
	t.Cleanup(func() { Init("info", "json") })

	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			Init(tt.level, "json")
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
}
