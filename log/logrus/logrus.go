// Package logrus adapts a *logrus.Entry to flashguard.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/flashguard"
)

var _ flashguard.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

func New(l *logrus.Logger, component string) LogrusLogger {
	e := logrus.NewEntry(l)
	if component != "" {
		e = e.WithField("component", component)
	}
	return LogrusLogger{E: e}
}

func (l LogrusLogger) Debug(msg string, f flashguard.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f flashguard.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f flashguard.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f flashguard.Fields) { l.with(f).Error(msg) }

// with routes an "err" field through WithError so hooks and formatters see it
// under logrus.ErrorKey.
func (l LogrusLogger) with(f flashguard.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	fields := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			fields[logrus.ErrorKey] = err
			continue
		}
		fields[k] = v
	}
	return l.E.WithFields(fields)
}
