// Package logging builds the process logger. Packages that only need to report progress
// depend on the Logger interface instead of logrus directly.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the minimal logging contract shared by modules.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// New returns a logrus logger writing to stdout with the requested level and format
// ("json" or "text"). Unknown levels fall back to info.
func New(level, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if strings.EqualFold(format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return l
}

// Discard is a Logger that drops everything; handy for tests and optional deps.
type Discard struct{}

func (Discard) Infof(string, ...interface{})  {}
func (Discard) Errorf(string, ...interface{}) {}
