// Package browser starts browser processes for a profile and opens urls in
// already-running instances.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"time"
)

// LaunchSpec describes one profile's browser instance.
type LaunchSpec struct {
	Host        string
	DebugPort   int
	UserDataDir string
	StartURL    string
}

// Launcher resolves the browser binary once and spawns instances on demand.
// Spawned browsers are not managed afterwards; they outlive the server.
type Launcher struct {
	path string
}

// NewLauncher resolves the browser binary. An explicit path wins; otherwise
// common Chromium-family names are probed on PATH.
func NewLauncher(path string) (*Launcher, error) {
	if path != "" {
		if _, err := exec.LookPath(path); err != nil {
			return nil, fmt.Errorf("configured browser not found: %w", err)
		}
		return &Launcher{path: path}, nil
	}
	detected, err := detectBrowser()
	if err != nil {
		return nil, err
	}
	return &Launcher{path: detected}, nil
}

// Path returns the resolved browser binary.
func (l *Launcher) Path() string { return l.path }

// detectBrowser finds an available Chromium-family binary.
func detectBrowser() (string, error) {
	candidates := []string{"microsoft-edge", "chromium-browser", "chromium", "google-chrome"}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	if runtime.GOOS == "darwin" {
		for _, macPath := range []string{
			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		} {
			if _, err := os.Stat(macPath); err == nil {
				return macPath, nil
			}
		}
	}
	return "", fmt.Errorf("no supported browser found (tried microsoft-edge, chromium-browser, chromium, google-chrome)")
}

// isPortInUse checks whether a TCP port is already listening.
func isPortInUse(host string, port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Launch starts a debug-enabled browser for the spec unless its debug port
// is already in use, then waits for the debug endpoint to come up.
func (l *Launcher) Launch(ctx context.Context, spec LaunchSpec) error {
	if isPortInUse(spec.Host, spec.DebugPort) {
		slog.Info("browser already running, skipping launch", "host", spec.Host, "port", spec.DebugPort)
		return nil
	}

	if err := os.MkdirAll(spec.UserDataDir, 0o755); err != nil {
		return fmt.Errorf("create user data dir: %w", err)
	}

	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", spec.DebugPort),
		fmt.Sprintf("--user-data-dir=%s", spec.UserDataDir),
		"--no-first-run",
	}
	if spec.StartURL != "" {
		args = append(args, spec.StartURL)
	}

	cmd := exec.Command(l.path, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	slog.Info("browser process started", "pid", cmd.Process.Pid, "port", spec.DebugPort)
	go func() { _ = cmd.Wait() }()

	if err := l.waitForDebugEndpoint(ctx, spec); err != nil {
		return fmt.Errorf("waiting for debug endpoint: %w", err)
	}
	slog.Info("debug endpoint ready", "host", spec.Host, "port", spec.DebugPort)
	return nil
}

// OpenURL opens a url as a new tab in the profile's running instance. The
// browser routes the invocation to the existing process for the same user
// data dir.
func (l *Launcher) OpenURL(spec LaunchSpec, url string) error {
	cmd := exec.Command(l.path, fmt.Sprintf("--user-data-dir=%s", spec.UserDataDir), url)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open url: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	slog.Info("opened url in browser", "url", url, "port", spec.DebugPort)
	return nil
}

// waitForDebugEndpoint polls the version endpoint until it responds.
func (l *Launcher) waitForDebugEndpoint(ctx context.Context, spec LaunchSpec) error {
	url := fmt.Sprintf("http://%s:%d/json/version", spec.Host, spec.DebugPort)
	deadline := time.After(15 * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	client := &http.Client{Timeout: time.Second}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("debug endpoint not ready within 15s at %s", url)
		case <-ticker.C:
			resp, err := client.Get(url)
			if err != nil {
				continue
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
	}
}
