package device

import (
	"fmt"
	"time"
)

// PrintLogger writes to the USB console with println, prefixed by the time since boot
type PrintLogger struct {
	start   time.Time
	verbose bool
}

// NewPrintLogger creates a PrintLogger. Debug messages are only printed when verbose
func NewPrintLogger(verbose bool) *PrintLogger {
	return &PrintLogger{start: time.Now(), verbose: verbose}
}

func (l *PrintLogger) print(level string, msg string) {
	println("["+time.Since(l.start).String()+"]", level, msg)
}

func (l *PrintLogger) Error(args ...interface{}) {
	l.print("ERROR", fmt.Sprint(args...))
}

func (l *PrintLogger) Errorf(format string, args ...interface{}) {
	l.print("ERROR", fmt.Sprintf(format, args...))
}

func (l *PrintLogger) Warn(args ...interface{}) {
	l.print("WARN", fmt.Sprint(args...))
}

func (l *PrintLogger) Warnf(format string, args ...interface{}) {
	l.print("WARN", fmt.Sprintf(format, args...))
}

func (l *PrintLogger) Info(args ...interface{}) {
	l.print("INFO", fmt.Sprint(args...))
}

func (l *PrintLogger) Infof(format string, args ...interface{}) {
	l.print("INFO", fmt.Sprintf(format, args...))
}

func (l *PrintLogger) Debug(args ...interface{}) {
	if l.verbose {
		l.print("DEBUG", fmt.Sprint(args...))
	}
}

func (l *PrintLogger) Debugf(format string, args ...interface{}) {
	if l.verbose {
		l.print("DEBUG", fmt.Sprintf(format, args...))
	}
}
