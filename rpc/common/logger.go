package common

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// rwsLogger implements the ILogger interface with custom formatting
type rwsLogger struct {
	name   string
	mu     sync.RWMutex
	level  logger.LogLevel
	logger *log.Logger
}

func (l *rwsLogger) SetLevel(level logger.LogLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *rwsLogger) enabled(level logger.LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level >= level
}

func (l *rwsLogger) Debugf(format string, args ...interface{}) {
	if l.enabled(logger.DEBUG) {
		l.log("DEBUG", format, args...)
	}
}

func (l *rwsLogger) Infof(format string, args ...interface{}) {
	if l.enabled(logger.INFO) {
		l.log("INFO", format, args...)
	}
}

func (l *rwsLogger) Warningf(format string, args ...interface{}) {
	if l.enabled(logger.WARNING) {
		l.log("WARN", format, args...)
	}
}

func (l *rwsLogger) Errorf(format string, args ...interface{}) {
	if l.enabled(logger.ERROR) {
		l.log("ERROR", format, args...)
	}
}

func (l *rwsLogger) Panicf(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}

// log formats and writes a log message. this internal helper is used by the public methods
func (l *rwsLogger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-15s | %s", levelStr, l.name, message)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// logOutput is where all loggers created by CreateLogger write to
var logOutput io.Writer = os.Stdout

// CreateLogger implements the dragonboat logger.Factory
func CreateLogger(pkgName string) logger.ILogger {
	// Create standard logger with custom flags
	stdLogger := log.New(logOutput, "", log.Ldate|log.Ltime)

	return &rwsLogger{
		name:   pkgName,
		level:  logger.INFO,
		logger: stdLogger,
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info", "":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// LoggerNames are the names of all loggers used in this module
var LoggerNames = []string{
	"transport/rpc",
	"transport/ws",
	"transport/tcp",
	"transport/mem",
	"transport/unix",
	"client",
	"server",
	"session",
	"reachability",
}

// InitLoggers installs the custom logger factory and sets the level of all loggers
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	// Set as the global logger factory
	setFactoryOnce.Do(func() {
		logger.SetLoggerFactory(CreateLogger)
	})

	for _, name := range LoggerNames {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}

var setFactoryOnce sync.Once
