package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerSplitsErrorsToStderr(t *testing.T) {
	var stdout, stderr bytes.Buffer
	l := newLogger("info", &stdout, &stderr)

	l.Info("fetched %d pages", 3)
	l.Warn("slow page")
	l.Error("page %d failed", 4)
	l.Debug("hidden")

	out := stdout.String()
	if !strings.Contains(out, "INFO  fetched 3 pages") || !strings.Contains(out, "WARN  slow page") {
		t.Errorf("stdout: got %q", out)
	}
	if strings.Contains(out, "page 4 failed") {
		t.Errorf("errors should not reach stdout: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug should be filtered at info level: %q", out)
	}

	errOut := stderr.String()
	if !strings.Contains(errOut, "ERROR page 4 failed") {
		t.Errorf("stderr: got %q", errOut)
	}
	if strings.Contains(errOut, "fetched") {
		t.Errorf("info should not reach stderr: %q", errOut)
	}
}
