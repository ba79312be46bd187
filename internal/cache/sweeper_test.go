package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func writeFileAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes failed: %v", err)
	}
}

func TestSweep(t *testing.T) {
	root := t.TempDir()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	retention := 72 * time.Hour

	oldFile := filepath.Join(root, "aaaa", "metadata.m3u8")
	freshFile := filepath.Join(root, "bbbb", "metadata.m3u8")
	protectedFile := filepath.Join(root, "tv_shows.json")
	writeFileAged(t, oldFile, retention+time.Hour)
	writeFileAged(t, freshFile, time.Hour)
	writeFileAged(t, protectedFile, retention*10)

	sweeper := NewSweeper(root, retention, []string{"tv_shows.json", "channels.json"}, logger)
	sweeper.Sweep()

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("Expired file should be removed")
	}
	if _, err := os.Stat(filepath.Dir(oldFile)); !os.IsNotExist(err) {
		t.Error("Emptied directory should be removed")
	}
	if _, err := os.Stat(freshFile); err != nil {
		t.Error("Fresh file should be retained")
	}
	if _, err := os.Stat(filepath.Dir(freshFile)); err != nil {
		t.Error("Non-empty directory should be retained")
	}
	if _, err := os.Stat(protectedFile); err != nil {
		t.Error("Protected file should be retained regardless of age")
	}
	if _, err := os.Stat(root); err != nil {
		t.Error("Cache root should never be removed")
	}
}

func TestSweepEmptyNestedDir(t *testing.T) {
	root := t.TempDir()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	empty := filepath.Join(root, "cccc")
	if err := os.MkdirAll(empty, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	NewSweeper(root, time.Hour, nil, logger).Sweep()

	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Error("Empty directory should be removed")
	}
}
