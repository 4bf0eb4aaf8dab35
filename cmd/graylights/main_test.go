package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeFile writes content under dir and returns the full path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GRAYLIGHTS_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want a config load error", err)
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is empty.
func TestRun_MissingDatabasePath(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "config.yaml", `
site:
  id: test-site
database:
  path: ""
devices:
  file: "devices.yaml"
`)
	t.Setenv("GRAYLIGHTS_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestRun_MissingDeviceFile verifies run fails before serving when the
// device file cannot be read.
func TestRun_MissingDeviceFile(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "config.yaml", fmt.Sprintf(`
site:
  id: test-site
database:
  path: %q
devices:
  file: %q
`, filepath.Join(dir, "lights.db"), filepath.Join(dir, "missing.yaml")))
	t.Setenv("GRAYLIGHTS_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with a missing device file")
	}
	if !strings.Contains(err.Error(), "loading devices") {
		t.Errorf("run() error = %v, want a device load error", err)
	}
}

// TestRun_DevModeStartupAndShutdown starts the whole service on simulated
// transports, hits the API and shuts down on context cancellation.
func TestRun_DevModeStartupAndShutdown(t *testing.T) {
	dir := t.TempDir()
	devicesPath := writeFile(t, dir, "devices.yaml", `
devices:
  - name: Porch
    address: 10.0.0.12
    transport: telnet
  - name: Lamp
    address: 10.0.0.13
    transport: kasa
`)
	port := freePort(t)
	configPath := writeFile(t, dir, "config.yaml", fmt.Sprintf(`
site:
  id: test-site
  timezone: UTC
database:
  path: %q
api:
  host: "127.0.0.1"
  port: %d
logging:
  level: error
  format: text
devices:
  file: %q
  dev_mode: true
scheduler:
  enabled: true
  tick_interval: 1
voice:
  enabled: true
  transcript_file: %q
`, filepath.Join(dir, "lights.db"), port, devicesPath, filepath.Join(dir, "transcription.txt")))
	t.Setenv("GRAYLIGHTS_CONFIG", configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	client := &http.Client{Timeout: time.Second}

	var resp *http.Response
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		req, _ := http.NewRequestWithContext(ctx, http.MethodPost, base+"/on_all", nil)
		var err error
		resp, err = client.Do(req)
		if err == nil {
			break
		}
		select {
		case err := <-errCh:
			t.Fatalf("run() exited early: %v", err)
		case <-time.After(50 * time.Millisecond):
		}
	}
	if resp == nil {
		t.Fatal("API server never became reachable")
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("POST /on_all status = %d, want 200", resp.StatusCode)
	}
	transcript := filepath.Join(dir, "transcription.txt")
	for deadline := time.Now().Add(2 * time.Second); ; {
		_, err := os.Stat(transcript)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Errorf("voice transcript not created: %v", err)
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run() error = %v, want nil on shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("GRAYLIGHTS_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("GRAYLIGHTS_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}
