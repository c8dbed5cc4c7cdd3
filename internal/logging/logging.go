// Package logging configures the shared logrus logger used by every
// long-running smartos component. internal/loader never imports this
// package: its fault-servicing goroutine writes preformatted messages
// directly to os.Stdout / os.Stderr instead.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logrus.Logger writing to stderr with the given level name
// ("debug", "info", "warn", "error"; unrecognized values fall back to info).
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
