// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows
// +build !windows

package ollama

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
)

// startupTimeout bounds the health poll after spawning the server. Cold
// starts that need to load a runner can take a while.
const startupTimeout = 60 * time.Second

// findServerExecutable searches for ollama in PATH and common install
// locations on Unix/macOS.
func findServerExecutable() (string, error) {
	if path, err := exec.LookPath("ollama"); err == nil {
		return path, nil
	}

	candidates := []string{
		"/usr/local/bin/ollama",
		"/usr/bin/ollama",
		"/opt/ollama/ollama",
	}
	if home := os.Getenv("HOME"); home != "" {
		candidates = append(candidates,
			filepath.Join(home, ".local", "bin", "ollama"),
			filepath.Join(home, "bin", "ollama"),
		)
	}
	candidates = append(candidates, "/Applications/Ollama.app/Contents/Resources/ollama")

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("ollama not found in PATH or common installation directories " +
		"(checked PATH, /usr/local/bin, /usr/bin, ~/.local/bin)")
}

// startServerProcess spawns "ollama serve" in its own process group and
// polls until the API answers. The child inherits our environment plus
// OLLAMA_HOST and, when a model directory is configured, OLLAMA_MODELS, so
// the server binds where the client expects and stores models where the
// user asked.
func (c *Client) startServerProcess(ctx context.Context) error {
	serverPath, err := findServerExecutable()
	if err != nil {
		return &ClientError{
			Type:    ErrTypeConnection,
			Message: "failed to find Ollama executable",
			Cause:   err,
		}
	}

	cmd := exec.Command(serverPath, "serve")
	cmd.Env = c.serverEnv()

	// New process group so the server outlives this process.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		return &ClientError{
			Type:    ErrTypeConnection,
			Message: fmt.Sprintf("failed to start Ollama (path: %s)", serverPath),
			Cause:   err,
		}
	}
	if cmd.Process != nil {
		_ = cmd.Process.Release()
	}

	return c.waitUntilReady(ctx, serverPath)
}

// serverEnv builds the child environment for the spawned server.
func (c *Client) serverEnv() []string {
	env := os.Environ()
	if u, err := url.Parse(c.config.BaseURL); err == nil && u.Host != "" {
		env = append(env, "OLLAMA_HOST="+u.Host)
	}
	if c.config.ModelDir != "" {
		env = append(env, "OLLAMA_MODELS="+c.config.ModelDir)
	}
	return env
}

// waitUntilReady polls the health endpoint until the server answers or the
// startup timeout expires.
func (c *Client) waitUntilReady(ctx context.Context, serverPath string) error {
	deadline := time.Now().Add(startupTimeout)
	startTime := time.Now()
	var lastErr error

	fmt.Fprintf(os.Stderr, "Starting Ollama service...\n")

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return &ClientError{
				Type:    ErrTypeConnection,
				Message: "Ollama startup cancelled",
				Cause:   ctx.Err(),
			}
		default:
		}

		checkCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		lastErr = c.CheckRunning(checkCtx)
		cancel()

		if lastErr == nil {
			fmt.Fprintf(os.Stderr, "Ollama service started successfully (%.1fs)\n",
				time.Since(startTime).Seconds())
			return nil
		}

		fmt.Fprintf(os.Stderr, "\rStarting Ollama service... %.1fs elapsed",
			time.Since(startTime).Seconds())
		time.Sleep(500 * time.Millisecond)
	}

	fmt.Fprintf(os.Stderr, "\n")

	return &ClientError{
		Type: ErrTypeConnection,
		Message: fmt.Sprintf("Ollama started but not responding after %s (path: %s)",
			startupTimeout, serverPath),
		Cause: lastErr,
	}
}
