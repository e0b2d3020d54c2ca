package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"codeberg.org/mutker/healthmon/internal/errors"
	"codeberg.org/mutker/healthmon/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		want  logger.LogLevel
		valid bool
	}{
		{"debug", logger.DebugLevel, true},
		{"INFO", logger.InfoLevel, true},
		{"warning", logger.WarnLevel, true},
		{"warn", logger.WarnLevel, true},
		{"error", logger.ErrorLevel, true},
		{"", logger.InfoLevel, true},
		{"verbose", logger.InfoLevel, false},
	}

	for _, tt := range tests {
		got, ok := logger.ParseLevel(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.valid, ok, tt.in)
	}
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.DebugLevel).With("poller")

	log.Info().Int("interval", 2).Msg("Started")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "poller", line["component"])
	assert.Equal(t, "Started", line["message"])
	assert.EqualValues(t, 2, line["interval"])
}

func TestErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.DebugLevel)

	log.ErrorWithCode(errors.New().New(errors.ErrTimeout)).Msg("read failed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "operation_timeout", line["error_code"])
	assert.Equal(t, "error", line["level"])
}

func TestFatalReturnsEvent(t *testing.T) {
	logger.InitTo(&bytes.Buffer{}, logger.InfoLevel)

	// building the event must not exit; only Msg/Send would
	ev := logger.Fatal()
	require.NotNil(t, ev)
	assert.NotNil(t, ev.Event)
}
