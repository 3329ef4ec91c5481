package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestDefaultLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCustomLogger(&buf, LogLevelWarn)

	logger.Debug("debug line")
	logger.Info("info line")
	logger.Warn("warn line")
	logger.Error("error line")

	out := buf.String()
	for _, dropped := range []string{"debug line", "info line"} {
		if strings.Contains(out, dropped) {
			t.Errorf("message below warn level logged: %q", dropped)
		}
	}
	for _, kept := range []string{"[WARN] warn line", "[ERROR] error line"} {
		if !strings.Contains(out, kept) {
			t.Errorf("output missing %q:\n%s", kept, out)
		}
	}
}

func TestDefaultLogger_NoneSilencesEverything(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCustomLogger(&buf, LogLevelNone)

	logger.Error("still dropped")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
