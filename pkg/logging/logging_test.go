package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "run.log")
	log := New("debug", "json", path)
	log.Info("hello")
	if err := log.Sync(); err != nil {
		t.Logf("sync: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("log file content: %q", data)
	}
}

func TestNewDefaultsBadLevelToInfo(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "run.log")
	log := New("loud", "json", path)
	log.Debug("hidden")
	log.Info("visible")
	log.Sync()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	s := string(data)
	if strings.Contains(s, "hidden") {
		t.Error("debug record written at info level")
	}
	if !strings.Contains(s, "visible") {
		t.Error("info record missing")
	}
}
