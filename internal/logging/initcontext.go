// Package logging wires up structured, leveled, rotated logging shared by
// every component, the way the teacher's pkg/client/logging package does
// for its daemon and connector processes.
package logging

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/datawire/dlib/dlog"
)

// InitContext configures logrus as the dlog backend for name (e.g. "vpnclient"),
// writing to a daily-rotated file under logDir and, when attached to a
// terminal, also to stderr.
func InitContext(ctx context.Context, name, logDir, level string) (context.Context, error) {
	logger := logrus.StandardLogger()
	logger.SetLevel(parseLevel(level))

	rf, err := OpenRotatingFile(logDir, name, 5)
	if err != nil {
		return ctx, err
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logger.Formatter = NewFormatter("15:04:05.0000")
		logger.SetOutput(io.MultiWriter(rf, os.Stderr))
	} else {
		logger.Formatter = NewFormatter("2006-01-02 15:04:05.0000")
		logger.SetOutput(rf)
	}

	return dlog.WithLogger(ctx, dlog.WrapLogrus(logger)), nil
}

// SetLevel adjusts the shared logrus level at runtime, backing the config
// watcher's live log-level reload.
func SetLevel(level string) {
	logrus.StandardLogger().SetLevel(parseLevel(level))
}

func parseLevel(level string) logrus.Level {
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lv
}
