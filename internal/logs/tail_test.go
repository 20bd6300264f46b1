package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cointist/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker-1714557600000-btc.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	chunk, err := logs.Tail(context.Background(), path, logs.Options{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(chunk.Lines) != 2 || chunk.Lines[0] != "b" || chunk.Lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", chunk.Lines)
	}
	if chunk.Offset != 6 {
		t.Fatalf("expected offset at end of file, got %d", chunk.Offset)
	}
}

func TestTailLeavesPartialLine(t *testing.T) {
	path := writeLog(t, "one\ntw")

	chunk, err := logs.Tail(context.Background(), path, logs.Options{Offset: 0})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(chunk.Lines) != 1 || chunk.Lines[0] != "one" || chunk.Offset != 4 {
		t.Fatalf("unexpected chunk %+v", chunk)
	}

	appendLog(t, path, "o\n")
	chunk, err = logs.Tail(context.Background(), path, logs.Options{Offset: chunk.Offset})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(chunk.Lines) != 1 || chunk.Lines[0] != "two" {
		t.Fatalf("expected completed partial line, got %+v", chunk)
	}
}

func TestTailMissingFileAndTruncation(t *testing.T) {
	chunk, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "missing.log"), logs.Options{Offset: 10})
	if err != nil {
		t.Fatalf("Tail missing: %v", err)
	}
	if len(chunk.Lines) != 0 || chunk.Offset != 0 {
		t.Fatalf("expected empty chunk, got %+v", chunk)
	}

	path := writeLog(t, "fresh\n")
	chunk, err = logs.Tail(context.Background(), path, logs.Options{Offset: 500})
	if err != nil {
		t.Fatalf("Tail truncated: %v", err)
	}
	if len(chunk.Lines) != 1 || chunk.Lines[0] != "fresh" {
		t.Fatalf("expected restart after truncation, got %+v", chunk)
	}
}

func TestTailFollowWaits(t *testing.T) {
	path := writeLog(t, "start\n")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	first, err := logs.Tail(ctx, path, logs.Options{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	done := make(chan logs.Chunk, 1)
	go func() {
		chunk, err := logs.Tail(ctx, path, logs.Options{Offset: first.Offset, Follow: true, Wait: 5 * time.Second})
		if err != nil {
			t.Errorf("follow tail error: %v", err)
		}
		done <- chunk
	}()

	time.Sleep(200 * time.Millisecond)
	appendLog(t, path, "later\n")

	select {
	case chunk := <-done:
		if len(chunk.Lines) != 1 || chunk.Lines[0] != "later" {
			t.Fatalf("unexpected follow lines: %#v", chunk.Lines)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}

func TestTailFollowTimesOutQuietly(t *testing.T) {
	path := writeLog(t, "only\n")
	chunk, err := logs.Tail(context.Background(), path, logs.Options{Offset: 5, Follow: true, Wait: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(chunk.Lines) != 0 || chunk.Offset != 5 {
		t.Fatalf("expected empty chunk at same offset, got %+v", chunk)
	}
}
