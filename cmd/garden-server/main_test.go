package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestRunRequiresStorageAndIndexFlags(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(nil, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("expected exit code 2 for missing required flags, got %d", code)
	}
	if stderr.Len() == 0 {
		t.Fatal("expected a usage message on stderr")
	}
}

func TestRunServesAPIUntilCancelled(t *testing.T) {
	dir := t.TempDir()
	args := []string{
		"--storage", filepath.Join(dir, "devnet.db"),
		"--index", filepath.Join(dir, "index.db"),
		"--api-addr", "127.0.0.1:0",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan int, 1)
	go func() {
		done <- runWithContext(ctx, args, new(bytes.Buffer), new(bytes.Buffer))
	}()

	select {
	case code := <-done:
		if code != 0 {
			t.Fatalf("expected clean shutdown, got exit code %d", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down after context cancellation")
	}
}
