package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_Levels(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
	}{
		{level: "debug", expected: zerolog.DebugLevel},
		{level: "INFO", expected: zerolog.InfoLevel},
		{level: " warn ", expected: zerolog.WarnLevel},
		{level: "error", expected: zerolog.ErrorLevel},
		{level: "", expected: zerolog.InfoLevel},
		{level: "verbose", expected: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := NewWithWriter(&bytes.Buffer{}, tt.level)
			assert.Equal(t, tt.expected, logger.GetLevel())
		})
	}
}

func TestNewWithWriter_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info")

	logger.Debug().Msg("表示されない")
	logger.Info().Str("calendar_id", "primary").Msg("取得しました")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "primary", entry["calendar_id"])
	assert.Equal(t, "取得しました", entry["message"])
	assert.Contains(t, entry, "time")
}
