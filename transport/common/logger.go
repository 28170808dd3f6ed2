package common

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Custom Logger (implements logger.ILogger)
// --------------------------------------------------------------------------

// mavconnLogger implements the ILogger interface with custom formatting
type mavconnLogger struct {
	name   string
	level  logger.LogLevel
	logger *log.Logger
}

func (l *mavconnLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *mavconnLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *mavconnLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.log("INFO", format, args...)
	}
}

func (l *mavconnLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *mavconnLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *mavconnLogger) Panicf(format string, args ...interface{}) {
	if l.level >= logger.CRITICAL {
		panic(fmt.Sprintf(format, args...))
	}
}

// log formats and writes a log message. this internal helper is used by the public methods
func (l *mavconnLogger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-15s | %s", levelStr, l.name, message)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger implements the logger Factory interface
func CreateLogger(pkgName string) logger.ILogger {
	// Create standard logger with custom flags
	stdLogger := log.New(os.Stdout, "", log.Ldate|log.Ltime)

	return &mavconnLogger{
		name:   pkgName,
		level:  logger.INFO,
		logger: stdLogger,
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// parseLogLevel converts a string level to logger.LogLevel
func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG
	case "info":
		return logger.INFO
	case "warning", "warn":
		return logger.WARNING
	case "error":
		return logger.ERROR
	default:
		panic(fmt.Sprintf("invalid log level: %s. must be one of debug, info, warn, error", level))
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// InitLoggers installs the custom factory and configures all named loggers
// used by the transport layer.
func InitLoggers(logLevel string) {
	// Set as the global logger factory
	logger.SetLoggerFactory(CreateLogger)

	// Configure transport loggers
	logger.GetLogger("transport").SetLevel(parseLogLevel(logLevel))
	logger.GetLogger("transport/tcp").SetLevel(parseLogLevel(logLevel))
	logger.GetLogger("transport/udp").SetLevel(parseLogLevel(logLevel))
	logger.GetLogger("mavconn").SetLevel(parseLogLevel(logLevel))
}
