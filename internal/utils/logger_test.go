package utils

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestMuteConsoleKeepsErrorsOnly(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	SetLogOutput(&buf)
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	restore := MuteConsole()
	log.Warn().Msg("retrying part 2")
	log.Error().Msg("part 3 failed")
	restore()
	log.Warn().Msg("display stopped")

	out := buf.String()
	assert.NotContains(t, out, "retrying part 2")
	assert.Contains(t, out, "part 3 failed")
	assert.Contains(t, out, "display stopped")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestMuteConsoleLeavesDebugAlone(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	SetLogOutput(&bytes.Buffer{})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	restore := MuteConsole()
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	restore()
}
