// Package logging configures the structured logger shared by commands and
// backends.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// LevelEnv overrides the configured log level when set.
const LevelEnv = "TODO_LOG_LEVEL"

// New returns a logger writing text records to w.
// level is a logrus level name; debug forces the debug level.
// TODO_LOG_LEVEL takes precedence over both.
func New(w io.Writer, level string, debug bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	log.SetLevel(logrus.WarnLevel)
	if lvl, err := logrus.ParseLevel(level); err == nil && level != "" {
		log.SetLevel(lvl)
	}
	if debug {
		log.SetLevel(logrus.DebugLevel)
	}
	if env := os.Getenv(LevelEnv); env != "" {
		if lvl, err := logrus.ParseLevel(env); err == nil {
			log.SetLevel(lvl)
		}
	}
	return log
}

// Discard returns a logger that drops every record. Used by tests and by
// callers that were not given a logger.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
