// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows
// +build windows

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

// startupTimeout bounds the health poll after spawning the server. First
// launch on Windows is slow, so this is generous.
const startupTimeout = 60 * time.Second

// Windows-specific creation flags.
const (
	// CREATE_NO_WINDOW prevents a console window from being created.
	CREATE_NO_WINDOW = 0x08000000
	// DETACHED_PROCESS detaches the child from our console.
	DETACHED_PROCESS = 0x00000008
)

// findServerExecutable searches for ollama.exe in PATH and common install
// locations on Windows.
func findServerExecutable() (string, error) {
	if path, err := exec.LookPath("ollama.exe"); err == nil {
		return path, nil
	}
	if path, err := exec.LookPath("ollama"); err == nil {
		return path, nil
	}

	var candidates []string
	if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
		candidates = append(candidates, filepath.Join(localAppData, "Programs", "Ollama", "ollama.exe"))
	}
	candidates = append(candidates,
		`C:\Program Files\Ollama\ollama.exe`,
		`C:\Program Files (x86)\Ollama\ollama.exe`,
	)
	if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
		candidates = append(candidates,
			filepath.Join(userProfile, "Ollama", "ollama.exe"),
			filepath.Join(userProfile, ".ollama", "ollama.exe"),
		)
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("ollama.exe not found in PATH or common installation directories " +
		"(checked PATH, %%LOCALAPPDATA%%\\Programs\\Ollama, C:\\Program Files\\Ollama)")
}

// startServerProcess spawns "ollama serve" detached from our console and
// polls until the API answers. The child inherits our environment plus
// OLLAMA_HOST and, when a model directory is configured, OLLAMA_MODELS.
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

	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | CREATE_NO_WINDOW | DETACHED_PROCESS,
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

		checkCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
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
