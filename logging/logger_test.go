package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesSessionHeader(t *testing.T) {
	dir := t.TempDir()
	l, err := New("proxy", dir, true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	l.Info("listening on %s", "127.0.0.1:7771")

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 log file, got %d", len(entries))
	}

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "proxy log started") {
		t.Errorf("log file missing session header: %s", data)
	}
	if !strings.Contains(string(data), "listening on 127.0.0.1:7771") {
		t.Errorf("log file missing Info line: %s", data)
	}
}

func TestNewWithEmptyLogDirUsesStderrOnly(t *testing.T) {
	l, err := New("registrar", "", false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.Path() != "" {
		t.Errorf("Path() = %q, want empty", l.Path())
	}
	l.Debug("no-op, should not panic")
}
