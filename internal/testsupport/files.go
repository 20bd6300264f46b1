package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cointist/internal/artifacts"
	"cointist/internal/model"
)

// WriteJSON marshals v to path, creating parent directories.
func WriteJSON(t testing.TB, path string, v any) {
	t.Helper()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatalf("marshal %s: %v", path, err)
	}
	WriteText(t, path, string(data))
}

// WriteText writes content to path, creating parent directories.
func WriteText(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteSnapshot writes a selection snapshot containing items.
func WriteSnapshot(t testing.TB, path string, items ...model.Item) {
	t.Helper()
	WriteJSON(t, path, map[string]any{"items": items})
}

// WriteSummary writes a worker summary named for stamp and slug into dir and
// returns its file name. A zero createdAt omits the field.
func WriteSummary(t testing.TB, dir string, stamp time.Time, slug string, createdAt time.Time, items ...model.Item) string {
	t.Helper()

	name := artifacts.Format(artifacts.KindSummary, stamp, slug, "json")
	payload := map[string]any{"items": items}
	if !createdAt.IsZero() {
		payload["createdAt"] = createdAt.UnixMilli()
	}
	WriteJSON(t, filepath.Join(dir, name), payload)
	return name
}

// WriteWorkerLog writes a worker log named for stamp and slug into dir and
// returns its path.
func WriteWorkerLog(t testing.TB, dir string, stamp time.Time, slug string, lines ...string) string {
	t.Helper()

	path := filepath.Join(dir, artifacts.Format(artifacts.KindWorker, stamp, slug, "log"))
	WriteText(t, path, strings.Join(lines, "\n")+"\n")
	return path
}

// Touch sets a file's modification time.
func Touch(t testing.TB, path string, mtime time.Time) {
	t.Helper()

	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}
