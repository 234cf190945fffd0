package log

import (
	"fmt"
	"time"
)

// Info takes a pointer sublogger and writes an info level line
func Info(sl *SubLogger, data string) {
	mu.RLock()
	defer mu.RUnlock()
	if sl == nil || !sl.levels.Info {
		return
	}
	sl.stage("[INFO]", data)
}

// Infof takes a pointer sublogger and formats an info level line
func Infof(sl *SubLogger, format string, v ...interface{}) {
	Info(sl, fmt.Sprintf(format, v...))
}

// Debug takes a pointer sublogger and writes a debug level line
func Debug(sl *SubLogger, data string) {
	mu.RLock()
	defer mu.RUnlock()
	if sl == nil || !sl.levels.Debug {
		return
	}
	sl.stage("[DEBUG]", data)
}

// Debugf takes a pointer sublogger and formats a debug level line
func Debugf(sl *SubLogger, format string, v ...interface{}) {
	Debug(sl, fmt.Sprintf(format, v...))
}

// Warn takes a pointer sublogger and writes a warn level line
func Warn(sl *SubLogger, data string) {
	mu.RLock()
	defer mu.RUnlock()
	if sl == nil || !sl.levels.Warn {
		return
	}
	sl.stage("[WARN]", data)
}

// Warnf takes a pointer sublogger and formats a warn level line
func Warnf(sl *SubLogger, format string, v ...interface{}) {
	Warn(sl, fmt.Sprintf(format, v...))
}

// Error takes a pointer sublogger and writes an error level line
func Error(sl *SubLogger, data string) {
	mu.RLock()
	defer mu.RUnlock()
	if sl == nil || !sl.levels.Error {
		return
	}
	sl.stage("[ERROR]", data)
}

// Errorf takes a pointer sublogger and formats an error level line
func Errorf(sl *SubLogger, format string, v ...interface{}) {
	Error(sl, fmt.Sprintf(format, v...))
}

func (sl *SubLogger) stage(header, data string) {
	if sl.output == nil {
		return
	}
	fmt.Fprintf(sl.output, "%s%s%s%s%s%s%s\n",
		time.Now().Format(timestampFormat), spacer,
		sl.name, spacer,
		header, spacer,
		data)
}
