// Package logger provides the process-wide logging facade. All packages log
// through the package-level functions so the CLI can flip verbosity in one
// place.
package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu  sync.Mutex
	log = newLogger()
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: false,
		FullTimestamp:    true,
	})
	return l
}

// SetVerbose enables or disables debug-level output.
func SetVerbose(verbose bool) {
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

// Debug logs a debug message. Only visible when verbose mode is enabled.
func Debug(format string, args ...any) {
	log.Debugf(format, args...)
}

// Info logs an informational message.
func Info(format string, args ...any) {
	log.Infof(format, args...)
}

// Warn logs a warning message.
func Warn(format string, args ...any) {
	log.Warnf(format, args...)
}

// Error logs an error message.
func Error(format string, args ...any) {
	log.Errorf(format, args...)
}
