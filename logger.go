package dialog

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
)

// NewDefaultLogger returns a named glog logger used when callers do not
// provide one.
func NewDefaultLogger(name string) Logger {
	if name == "" {
		name = "dialog"
	}
	base := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithName(name),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)
	return base.GetLogger(name)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger discards every entry.
func NopLogger() Logger {
	return nopLogger{}
}

func resolveLogger(name string, l Logger) Logger {
	if l != nil {
		return l
	}
	return NewDefaultLogger(name)
}
