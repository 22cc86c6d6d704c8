package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithWriter_DefaultsToInfoAndConsole(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "", "")

	assert.Equal(t, zerolog.InfoLevel, Logger.GetLevel())
	assert.Equal(t, zerolog.InfoLevel, zlog.Logger.GetLevel())

	Logger.Info().Msg("hello")
	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.False(t, strings.HasPrefix(strings.TrimSpace(out), "{"), "console output is not JSON")
}

func TestInitWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "debug", "json")

	assert.Equal(t, zerolog.DebugLevel, Logger.GetLevel())
	Logger.Debug().Str("k", "v").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "v", line["k"])
	assert.Contains(t, line, "time")
}

func TestInitWithWriter_InvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "loud", "json")
	assert.Equal(t, zerolog.InfoLevel, Logger.GetLevel())

	Logger.Debug().Msg("hidden")
	assert.Empty(t, buf.String())
}
