package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeYAML(t *testing.T, path, addr string) {
	t.Helper()
	content := "server:\n  addr: \"" + addr + "\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	writeYAML(t, path, ":8080")

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	reloaded := make(chan *Config, 1)
	w.OnChange(func(cfg *Config) { reloaded <- cfg })

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	writeYAML(t, path, ":9090")

	select {
	case cfg := <-reloaded:
		if cfg.Server.Addr != ":9090" {
			t.Fatalf("expected reloaded addr :9090, got %s", cfg.Server.Addr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestWatcherCurrentReturnsInitialConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	writeYAML(t, path, ":7000")

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if w.Current().Server.Addr != ":7000" {
		t.Fatalf("expected initial addr :7000, got %s", w.Current().Server.Addr)
	}
}
