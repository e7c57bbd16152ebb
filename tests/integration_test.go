package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"
)

func freePort(t *testing.T) int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to find free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServerStartsAndShutsDown(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "carepulse-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	port := freePort(t)

	cmd := exec.Command(binaryPath, "--data", tmpDir)
	cmd.Env = append(os.Environ(),
		"CAREPULSE_SERVER_ADDRESS=127.0.0.1",
		fmt.Sprintf("CAREPULSE_SERVER_PORT=%d", port),
	)
	input, _ := os.Open("/dev/null")
	cmd.Stdin = input
	defer input.Close()

	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer cmd.Process.Kill()

	// Poll health until the server comes up.
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/api/health", port)
	var healthy bool
	for i := 0; i < 50; i++ {
		resp, err := http.Get(healthURL)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == 200 {
				healthy = true
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	if !healthy {
		t.Fatal("Server never became healthy")
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/metrics", port))
	if err != nil {
		t.Fatalf("Metrics endpoint failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("Metrics endpoint returned %d", resp.StatusCode)
	}

	// Graceful shutdown on SIGTERM.
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("Failed to signal server: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("Server did not shut down in time")
	}
}

func TestUnauthorizedRequestRejected(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "carepulse-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	port := freePort(t)

	cmd := exec.Command(binaryPath, "--data", tmpDir)
	cmd.Env = append(os.Environ(),
		"CAREPULSE_SERVER_ADDRESS=127.0.0.1",
		fmt.Sprintf("CAREPULSE_SERVER_PORT=%d", port),
	)
	input, _ := os.Open("/dev/null")
	cmd.Stdin = input
	defer input.Close()

	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer func() {
		cmd.Process.Signal(syscall.SIGTERM)
		cmd.Wait()
	}()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/medicines", port)
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Server never came up: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 401 {
		t.Fatalf("Expected 401 without a token, got %d", resp.StatusCode)
	}
}
