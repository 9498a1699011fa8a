package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestComponentTagsOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("info", &buf).Component("syncer")
	logger.Info().Str("file", "gpcw20240331.zip").Msg("downloaded")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "syncer", entry["component"])
	assert.Equal(t, "gpcw20240331.zip", entry["file"])
	assert.Equal(t, "downloaded", entry["message"])
}

func TestLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("warn", &buf)
	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())
}
