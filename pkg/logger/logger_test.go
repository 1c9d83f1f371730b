package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"fatal", zerolog.FatalLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"verbose", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run("level_"+tt.input, func(t *testing.T) {
			got, err := parseLogLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRejectsInvalidLevel(t *testing.T) {
	_, err := New(&Options{Level: "bogus"})
	assert.Error(t, err)
}

func TestNewWithFile(t *testing.T) {
	path := t.TempDir() + "/logs/app.log"
	log, err := New(&Options{Level: "debug", File: path})
	require.NoError(t, err)

	log.WithField("key", "value").Info("hello")
	assert.FileExists(t, path)
}

func TestNopLoggerDoesNotPanic(t *testing.T) {
	log := Nop()
	log.Debug("a")
	log.WithFields(map[string]interface{}{"k": 1}).Error("b")
	log.WithError(assert.AnError).Warn("c")
}
