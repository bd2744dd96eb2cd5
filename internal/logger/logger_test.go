package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogFilePathDefaultsToWorkdir(t *testing.T) {
	tmpDir := t.TempDir()
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("get wd failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWD) })
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}

	got, err := logFilePath(Options{})
	if err != nil {
		t.Fatalf("resolve log path failed: %v", err)
	}
	realTmp, err := filepath.EvalSymlinks(tmpDir)
	if err != nil {
		t.Fatalf("eval tmp dir failed: %v", err)
	}
	realDir, err := filepath.EvalSymlinks(filepath.Dir(got))
	if err != nil {
		t.Fatalf("eval log dir failed: %v", err)
	}
	if realDir != filepath.Join(realTmp, defaultDir) {
		t.Fatalf("unexpected log dir: %s", realDir)
	}
	if filepath.Base(got) != defaultFilename {
		t.Fatalf("unexpected log filename: %s", filepath.Base(got))
	}
}

func TestReleaseModeWritesJSONToFile(t *testing.T) {
	dir := t.TempDir()
	l := New("release", Options{Dir: dir, Filename: "release.log"})
	l.Info("shipping_request_committed")
	_ = l.Sync()

	content, err := os.ReadFile(filepath.Join(dir, "release.log"))
	if err != nil {
		t.Fatalf("read log failed: %v", err)
	}
	if !strings.Contains(string(content), `"message":"shipping_request_committed"`) {
		t.Fatalf("log content missing event: %s", string(content))
	}
}

func TestReleaseModeRespectsLevel(t *testing.T) {
	dir := t.TempDir()
	l := New("release", Options{Dir: dir, Filename: "warn.log", Level: "warn"})
	l.Info("should_be_filtered")
	l.Warn("kept_event")
	_ = l.Sync()

	content, err := os.ReadFile(filepath.Join(dir, "warn.log"))
	if err != nil {
		t.Fatalf("read log failed: %v", err)
	}
	if strings.Contains(string(content), "should_be_filtered") {
		t.Fatalf("info entry should be filtered: %s", string(content))
	}
	if !strings.Contains(string(content), "kept_event") {
		t.Fatalf("warn entry missing: %s", string(content))
	}
}

func TestLFallsBackBeforeInit(t *testing.T) {
	mu.Lock()
	prev := global
	global = nil
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		global = prev
		mu.Unlock()
	})

	if L() == nil {
		t.Fatalf("expected fallback logger")
	}
}
