package utils

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger sets up the global logger. With fileLog the JSON log goes to LogFile so the
// live display stays clean; otherwise warnings (or everything, with debug) go to stderr.
func InitLogger(debug, fileLog bool) error {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if fileLog {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if fileLog {
		f, err := os.OpenFile(LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("error opening log file: %v", err)
		}
		log.Logger = zerolog.New(f).With().Timestamp().Logger()
		consoleLogging = false
		return nil
	}
	SetLogOutput(os.Stderr)
	return nil
}

func SetLogOutput(w io.Writer) {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.DateTime,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	consoleLogging = true
}

var consoleLogging bool

// MuteConsole raises the global level to error while logs go to the console, so a
// live display redrawn in place is not torn by retry warnings. Debug logging and the
// file logger are left alone. The returned func restores the previous level.
func MuteConsole() func() {
	prev := zerolog.GlobalLevel()
	if !consoleLogging || prev <= zerolog.DebugLevel || prev >= zerolog.ErrorLevel {
		return func() {}
	}
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	return func() { zerolog.SetGlobalLevel(prev) }
}

// LeveledLogger adapts the global zerolog logger to retryablehttp.LeveledLogger
type LeveledLogger struct {
	Op string
}

func (l LeveledLogger) Error(msg string, keysAndValues ...any) {
	log.Error().Str("op", l.Op).Fields(keysAndValues).Msg(msg)
}

func (l LeveledLogger) Info(msg string, keysAndValues ...any) {
	log.Info().Str("op", l.Op).Fields(keysAndValues).Msg(msg)
}

func (l LeveledLogger) Debug(msg string, keysAndValues ...any) {
	log.Debug().Str("op", l.Op).Fields(keysAndValues).Msg(msg)
}

func (l LeveledLogger) Warn(msg string, keysAndValues ...any) {
	log.Warn().Str("op", l.Op).Fields(keysAndValues).Msg(msg)
}
