package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestDefaultLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewDefaultLoggerTo(&buf, "bvh-test", false)

	l.Debugf("hidden %d", 1)
	l.Infof("built %d nodes", 42)
	l.Warnf("slow build")
	l.Errorf("failed: %s", "oom")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug output should be filtered, got %q", out)
	}
	for _, want := range []string{"[bvh-test]", "INFO: built 42 nodes", "WARNING: slow build", "ERROR: failed: oom"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output %q", want, out)
		}
	}

	buf.Reset()
	l.SetDebug(true)
	if !l.DebugEnabled() {
		t.Fatal("debug should be enabled")
	}
	l.Debugf("visible %d", 2)
	if !strings.Contains(buf.String(), "DEBUG: visible 2") {
		t.Errorf("expected debug line, got %q", buf.String())
	}
}

func TestOrNop(t *testing.T) {
	l := OrNop(nil)
	if l == nil {
		t.Fatal("OrNop must never return nil")
	}
	if l.DebugEnabled() {
		t.Error("nop logger never has debug enabled")
	}
	l.SetDebug(true)
	l.Debugf("ignored")

	d := NewDefaultLoggerTo(&bytes.Buffer{}, "x", false)
	if OrNop(d) != Logger(d) {
		t.Error("OrNop should pass through a non-nil logger")
	}
}
