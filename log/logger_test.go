package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetSink(&buf)
	defer SetSink(os.Stdout)
	SetLevel(Warning)
	defer SetLevel(Notice)

	logger := New("test")
	logger.Info("hidden")
	logger.Warning("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected info message to be filtered; got %q", out)
	}
	if !strings.Contains(out, "visible") || !strings.Contains(out, "[test]") {
		t.Fatalf("expected warning message tagged with module name; got %q", out)
	}
}

func TestFileSink(t *testing.T) {
	var buf bytes.Buffer
	SetSink(&buf)
	defer SetSink(os.Stdout)

	logFile := filepath.Join(t.TempDir(), "render.log")
	if err := SetFileSink(FileConfig{Path: logFile, MaxSizeMB: 1}); err != nil {
		t.Fatal(err)
	}

	New("test").Error("written to both sinks")

	if err := SetFileSink(FileConfig{}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "written to both sinks") {
		t.Fatalf("expected log file to contain message; got %q", string(data))
	}
	if !strings.Contains(buf.String(), "written to both sinks") {
		t.Fatalf("expected console sink to contain message; got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	specs := []struct {
		in  string
		exp Level
	}{
		{"debug", Debug},
		{"INFO", Info},
		{"notice", Notice},
		{"warning", Warning},
		{"error", Error},
	}

	for specIndex, spec := range specs {
		lvl, err := ParseLevel(spec.in)
		if err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", specIndex, err)
		}
		if lvl != spec.exp {
			t.Fatalf("[spec %d] expected level %d; got %d", specIndex, spec.exp, lvl)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}
