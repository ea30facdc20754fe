// Package logging wraps logrus behind the package-level Infof/Warnf/Errorf
// call surface used throughout this codebase, with size-rotated file
// output via lumberjack (100 MB per file, 30 days retention, compressed
// backups). There is no time-based rotation: files are not rotated at
// midnight.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)
}

// Configure points the logger at a rotated log file (and, unless
// stdoutAlso is false, stdout too) and sets the minimum level.
func Configure(logFilePath string, stdoutAlso bool, level logrus.Level) {
	rotator := &lumberjack.Logger{
		Filename: logFilePath,
		MaxSize:  100, // MB
		MaxAge:   30,  // days
		Compress: true,
	}
	var out io.Writer = rotator
	if stdoutAlso {
		out = io.MultiWriter(rotator, os.Stdout)
	}
	log.SetOutput(out)
	log.SetLevel(level)
}

func Infof(format string, args ...any)  { log.Infof(format, args...) }
func Warnf(format string, args ...any)  { log.Warnf(format, args...) }
func Errorf(format string, args ...any) { log.Errorf(format, args...) }
func Debugf(format string, args ...any) { log.Debugf(format, args...) }

// WithFields returns a scoped logger carrying structured key/value context,
// for call sites that log more than one related field at a time.
func WithFields(fields map[string]any) *logrus.Entry {
	return log.WithFields(logrus.Fields(fields))
}
