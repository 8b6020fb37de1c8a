package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := New(level)
		if err != nil {
			t.Fatalf("New(%q) error: %v", level, err)
		}
		want, _ := zapcore.ParseLevel(level)
		if !logger.Core().Enabled(want) {
			t.Errorf("New(%q) does not log at its own level", level)
		}
		if want > zapcore.DebugLevel && logger.Core().Enabled(want-1) {
			t.Errorf("New(%q) logs below its level", level)
		}
	}

	if _, err := New("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
