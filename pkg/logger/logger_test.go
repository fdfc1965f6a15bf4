package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesJSONToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app", "envioscout.log")

	l, err := New(Config{Level: "debug", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	l.Slog().Debug("区块查询完成", slog.String("chain", "eth"), slog.Int("blocks", 5))
	if err := l.Sync(); err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	for _, want := range []string{"区块查询完成", `"chain":"eth"`, `"blocks":5`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in log output, got %s", want, out)
		}
	}
}

func TestLevelFiltersLowerEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn.log")
	l, err := New(Config{Level: "warn", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	l.Slog().Info("hidden")
	l.Slog().Warn("visible")

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "hidden") {
		t.Fatalf("info entry should be filtered at warn level")
	}
	if !strings.Contains(string(data), "visible") {
		t.Fatalf("warn entry missing: %s", data)
	}
}

func TestAuditRequiresPath(t *testing.T) {
	if _, err := New(Config{Audit: AuditConfig{Enabled: true}}); err == nil {
		t.Fatalf("expected error for audit without path")
	}
}

func TestAuditLoggerSeparateFile(t *testing.T) {
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit.log")
	l, err := New(Config{OutputPaths: []string{filepath.Join(dir, "app.log")}, Audit: AuditConfig{Enabled: true, Path: auditPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	l.AuditLog().Info("chat job submitted", slog.String("job_id", "j-1"))

	data, err := os.ReadFile(auditPath)
	if err != nil {
		t.Fatalf("read audit file: %v", err)
	}
	if !strings.Contains(string(data), "j-1") {
		t.Fatalf("audit entry missing: %s", data)
	}
}
