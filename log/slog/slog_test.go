package slog

import (
	"bytes"
	"errors"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/flashguard"
)

func TestLoggerWritesSortedFields(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{L: stdslog.New(stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo}))}

	l.Debug("hidden", flashguard.Fields{"k": 1})
	l.Warn("lock release failed", flashguard.Fields{"key": "lock:shop:1", "err": errors.New("not held")})

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug should be filtered: %q", out)
	}
	if !strings.Contains(out, `msg="lock release failed" err="not held" key=lock:shop:1`) {
		t.Fatalf("unexpected output: %q", out)
	}
}
