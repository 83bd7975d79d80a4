// Package logging configures the global logrus logger.
package logging

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects level, format and destination.
type Options struct {
	Level  string
	Format string
	// File, when set, sends output to a rotating log file.
	File string
}

// UTCFormatter prints entries with UTC timestamps.
type UTCFormatter struct {
	logrus.Formatter
}

// Format implements logrus.Formatter
func (u *UTCFormatter) Format(e *logrus.Entry) ([]byte, error) {
	e.Time = e.Time.UTC()
	return u.Formatter.Format(e)
}

// NewFormatter returns the formatter for format ("text" or "json").
func NewFormatter(format string) (logrus.Formatter, error) {
	switch strings.ToLower(format) {
	case "", "text", "plain":
		return &UTCFormatter{Formatter: &logrus.TextFormatter{FullTimestamp: true}}, nil
	case "json":
		return &UTCFormatter{Formatter: &logrus.JSONFormatter{}}, nil
	default:
		return nil, errors.Newf("invalid log format: %s", format)
	}
}

// Setup applies opts to the standard logger.
func Setup(opts Options) error {
	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return errors.Wrapf(err, "invalid log level %s", opts.Level)
		}
		level = parsed
	}

	formatter, err := NewFormatter(opts.Format)
	if err != nil {
		return err
	}

	if opts.File != "" && opts.File != "console" {
		logrus.SetOutput(io.Writer(&lumberjack.Logger{
			Filename:   filepath.ToSlash(opts.File),
			MaxSize:    5, // MB
			MaxBackups: 10,
			MaxAge:     30, // days
			Compress:   true,
		}))
	}

	logrus.SetFormatter(formatter)
	logrus.SetLevel(level)
	return nil
}
