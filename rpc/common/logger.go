// Package common provides the package level loggers of wbKV. Every package gets its
// logger from dragonboat's logger registry, InitLoggers routes them all through lineLogger.
package common

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Line Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// levelTags are the level names written in front of each line
var levelTags = map[logger.LogLevel]string{
	logger.CRITICAL: "PANIC",
	logger.ERROR:    "ERROR",
	logger.WARNING:  "WARN",
	logger.INFO:     "INFO",
	logger.DEBUG:    "DEBUG",
}

// lineLogger writes one "LEVEL | package | message" line per call.
// The level may be changed while other goroutines log.
type lineLogger struct {
	pkg   string
	level atomic.Int32
	out   *log.Logger
}

func newLogger(pkg string, w io.Writer) *lineLogger {
	l := &lineLogger{pkg: pkg, out: log.New(w, "", log.Ldate|log.Ltime)}
	l.SetLevel(logger.INFO)
	return l
}

func (l *lineLogger) SetLevel(level logger.LogLevel) {
	l.level.Store(int32(level))
}

func (l *lineLogger) Debugf(format string, args ...interface{}) {
	l.logf(logger.DEBUG, format, args...)
}

func (l *lineLogger) Infof(format string, args ...interface{}) {
	l.logf(logger.INFO, format, args...)
}

func (l *lineLogger) Warningf(format string, args ...interface{}) {
	l.logf(logger.WARNING, format, args...)
}

func (l *lineLogger) Errorf(format string, args ...interface{}) {
	l.logf(logger.ERROR, format, args...)
}

// Panicf always panics, the message is logged first
func (l *lineLogger) Panicf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logf(logger.CRITICAL, "%s", msg)
	panic(msg)
}

func (l *lineLogger) logf(level logger.LogLevel, format string, args ...interface{}) {
	if logger.LogLevel(l.level.Load()) < level {
		return
	}
	l.out.Printf("%-5s | %-10s | %s", levelTags[level], l.pkg, fmt.Sprintf(format, args...))
}

// CreateLogger is the logger.Factory of wbKV, all lines go to stderr
func CreateLogger(pkgName string) logger.ILogger {
	return newLogger(pkgName, os.Stderr)
}

// --------------------------------------------------------------------------
// Levels
// --------------------------------------------------------------------------

// ParseLogLevel converts a level name (debug, info, warn, error) to a logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	}
	return logger.INFO, fmt.Errorf("invalid log level %q, must be one of debug, info, warn, error", level)
}

var factoryOnce sync.Once

// loggedPackages are the names of all package level loggers of wbKV
var loggedPackages = []string{"savesvc", "store", "cache", "rpc", "cmd"}

// InitLoggers installs CreateLogger as the logger factory (once per process)
// and sets the level of every package logger
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	factoryOnce.Do(func() { logger.SetLoggerFactory(CreateLogger) })
	for _, pkg := range loggedPackages {
		logger.GetLogger(pkg).SetLevel(lvl)
	}
	return nil
}
