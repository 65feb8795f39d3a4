package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"chatty", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestSetDefault(t *testing.T) {
	prev := *Default()
	defer SetDefault(prev)

	buf := &bytes.Buffer{}
	SetDefault(zerolog.New(buf))

	Default().Info().Str("stage", "resolve-columns").Msg("stage started")
	assert.Contains(t, buf.String(), `"stage":"resolve-columns"`)
}

func TestNewDiscard(t *testing.T) {
	logger := New(Config{Level: "error", Output: "discard"})
	assert.Equal(t, zerolog.ErrorLevel, logger.GetLevel())
}
