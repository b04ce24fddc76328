// Package logging builds the logrus loggers used by nhale.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/sirupsen/logrus"

	"github.com/OhanaFS/nhale/errorx"
)

const (
	TimeFormat   = "2006-01-02 15:04:05"
	DefaultLevel = logrus.InfoLevel
)

// Config describes where and how much to log.
type Config struct {
	// Level is a logrus level name. Unknown or empty names fall back to info.
	Level string `mapstructure:"level"`
	// Path is a directory for rotated log files. Logs go to stderr when empty.
	Path string `mapstructure:"path"`
}

// New returns a logger for conf. When conf.Path is set, records are written
// to fileName inside it, rotated hourly and kept for 30 days.
func New(conf *Config, fileName string) (*logrus.Logger, error) {
	if conf == nil {
		conf = &Config{}
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: TimeFormat,
	})

	level, err := logrus.ParseLevel(conf.Level)
	if err != nil {
		level = DefaultLevel
	}
	log.SetLevel(level)

	if conf.Path == "" {
		log.SetOutput(os.Stderr)
		return log, nil
	}

	w, err := writer(conf.Path, fileName)
	if err != nil {
		return nil, err
	}
	log.SetOutput(w)
	return log, nil
}

func writer(logPath, fileName string) (io.Writer, error) {
	if err := os.MkdirAll(logPath, 0755); err != nil {
		return nil, errorx.Wrap(err, errorx.Io, "failed to create log directory")
	}
	logFileName := filepath.Join(logPath, fileName)

	// Point a link at the latest file, cut every hour, keep 30 days.
	w, err := rotatelogs.New(
		logFileName+".%Y%m%d%H",
		rotatelogs.WithLinkName(logFileName),
		rotatelogs.WithMaxAge(720*time.Hour),
		rotatelogs.WithRotationTime(time.Hour),
	)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Io, "failed to create rotating log writer")
	}
	return w, nil
}

// Discard returns a logger that drops every record.
func Discard() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// Or returns log, or a discarding logger when log is nil.
func Or(log logrus.FieldLogger) logrus.FieldLogger {
	if log == nil {
		return Discard()
	}
	return log
}
