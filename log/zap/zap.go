// Package zap adapts a *zap.Logger to flashguard.Logger.
package zap

import (
	"github.com/unkn0wn-root/flashguard"
	"go.uber.org/zap"
)

var _ flashguard.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

// New tags every entry with component so shield, purchase and catalog logs
// can be told apart.
func New(l *zap.Logger, component string) ZapLogger {
	if component != "" {
		l = l.With(zap.String("component", component))
	}
	return ZapLogger{L: l}
}

func (z ZapLogger) Debug(msg string, f flashguard.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f flashguard.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f flashguard.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f flashguard.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f flashguard.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
