//go:build integration

package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"
)

// buildBinary builds pingpoll into a temp dir
func buildBinary(t testing.TB) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "pingpoll_test")
	buildCmd := exec.Command("go", "build", "-o", bin, ".")
	if out, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build binary: %v\n%s", err, out)
	}
	return bin
}

// isolatedEnv keeps the user's config and .env out of the test
func isolatedEnv(t testing.TB, extra ...string) []string {
	t.Helper()
	return append(os.Environ(), append([]string{"HOME=" + t.TempDir()}, extra...)...)
}

func pongServer(t testing.TB) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	}))
	t.Cleanup(server.Close)
	return server
}

// TestShortPollLifecycle polls until the request ceiling and checks the journal
func TestShortPollLifecycle(t *testing.T) {
	bin := buildBinary(t)
	server := pongServer(t)
	dbPath := filepath.Join(t.TempDir(), "history.db")

	cmd := exec.Command(bin, "short", server.URL, "--debug", "--history="+dbPath)
	cmd.Dir = t.TempDir()
	cmd.Env = isolatedEnv(t,
		"PINGPOLL_SHORT_INTERVAL_SECONDS=2",
		"PINGPOLL_SHORT_MAX_REQUESTS=2",
	)

	output, err := cmd.Output()
	if err != nil {
		t.Fatalf("short poll failed: %v", err)
	}
	if got := strings.Count(string(output), "Output: pong"); got != 2 {
		t.Errorf("expected 2 status lines, got %d:\n%s", got, output)
	}
	if !strings.Contains(string(output), "2/2 completed, 0 aborted") {
		t.Errorf("expected summary, got:\n%s", output)
	}

	historyCmd := exec.Command(bin, "history", "--db="+dbPath, "--format", "yaml")
	historyCmd.Dir = t.TempDir()
	historyCmd.Env = isolatedEnv(t)
	out, err := historyCmd.Output()
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if got := strings.Count(string(out), "state: COMPLETED"); got != 2 {
		t.Errorf("expected 2 journal entries, got %d:\n%s", got, out)
	}
}

// TestGracefulShutdown stops a long poll with SIGINT
func TestGracefulShutdown(t *testing.T) {
	bin := buildBinary(t)
	server := pongServer(t)

	cmd := exec.Command(bin, "long", server.URL, "--log-level", "debug")
	cmd.Dir = t.TempDir()
	cmd.Env = isolatedEnv(t)

	var stdout strings.Builder
	cmd.Stdout = &stdout
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start poller: %v", err)
	}

	time.Sleep(500 * time.Millisecond)
	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		t.Fatalf("Failed to signal poller: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("poller exited with error: %v", err)
		}
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		t.Fatal("Poller did not stop within 5 seconds")
	}

	if !strings.Contains(stdout.String(), "0/120 completed") {
		t.Errorf("expected summary, got:\n%s", stdout.String())
	}
}

// TestCheckCommand runs a single check against a local server
func TestCheckCommand(t *testing.T) {
	bin := buildBinary(t)
	server := pongServer(t)

	cmd := exec.Command(bin, "check", server.URL, "--format", "{{.State}} {{.StatusCode}} {{.Body}}")
	cmd.Dir = t.TempDir()
	cmd.Env = isolatedEnv(t)

	output, err := cmd.Output()
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if got := strings.TrimSpace(string(output)); got != "COMPLETED 200 pong" {
		t.Errorf("unexpected output: %q", got)
	}
}

// BenchmarkCheckCommand benchmarks a full process round trip of "check"
func BenchmarkCheckCommand(b *testing.B) {
	bin := buildBinary(b)
	server := pongServer(b)
	env := isolatedEnv(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cmd := exec.Command(bin, "check", server.URL)
		cmd.Env = env
		if err := cmd.Run(); err != nil {
			b.Fatalf("check failed: %v", err)
		}
	}
}
