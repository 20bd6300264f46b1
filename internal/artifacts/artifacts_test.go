package artifacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cointist/internal/fileutil"
)

func TestFormatAndParseName(t *testing.T) {
	stamp := time.UnixMilli(1714557600123)
	name := Format(KindSummary, stamp, "BTC Rallies 1", "json")
	if name != "summary-1714557600123-btc_rallies_1.json" {
		t.Fatalf("unexpected name %q", name)
	}
	parsed, ok := ParseName(name)
	if !ok {
		t.Fatalf("ParseName(%q) failed", name)
	}
	if parsed.Kind != KindSummary || !parsed.Stamp.Equal(stamp) || parsed.Suffix != "btc_rallies_1" || parsed.Ext != "json" {
		t.Fatalf("unexpected parse %+v", parsed)
	}

	plain, ok := ParseName("selection-1714557600123.json")
	if !ok || plain.Suffix != "" || plain.Kind != KindSelection {
		t.Fatalf("unexpected parse %+v ok=%v", plain, ok)
	}

	for _, bad := range []string{"summary.json", "summary-12.json", "Summary-1714557600123.json", "notes.txt"} {
		if _, ok := ParseName(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestDirWriteListRead(t *testing.T) {
	ctx := context.Background()
	dir := NewDir(filepath.Join(t.TempDir(), "artifacts"))

	older := Format(KindSummary, time.UnixMilli(1714557600000), "a", "json")
	newer := Format(KindSummary, time.UnixMilli(1714557660000), "b", "json")
	manifest := Format(KindSelection, time.UnixMilli(1714557700000), "", "json")
	for _, name := range []string{older, newer, manifest} {
		if err := dir.Write(ctx, name, []byte(`{"items":[]}`)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	entries, err := dir.List(ctx, KindSummary+"-")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != newer || entries[1].Name != older {
		t.Fatalf("unexpected listing %+v", entries)
	}

	data, err := dir.Read(ctx, newer)
	if err != nil || string(data) != `{"items":[]}` {
		t.Fatalf("read: %q %v", data, err)
	}

	if err := dir.Write(ctx, newer, []byte("{}")); !errors.Is(err, fileutil.ErrExists) {
		t.Fatalf("expected create-only write to fail, got %v", err)
	}
}

func TestDirListMissingDirectory(t *testing.T) {
	dir := NewDir(filepath.Join(t.TempDir(), "missing"))
	_, err := dir.List(context.Background(), "")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestDirRejectsPathTraversal(t *testing.T) {
	dir := NewDir(t.TempDir())
	if _, err := dir.Read(context.Background(), "../etc/passwd"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if err := dir.Write(context.Background(), "a/b.json", nil); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestListSkipsHiddenAndDirectories(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".summary-1714557600000.json.123.tmp"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, "summary-1714557600000-dir.json"), 0o755); err != nil {
		t.Fatal(err)
	}
	entries, err := NewDir(root).List(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %+v", entries)
	}
}

func TestPruneRemovesOnlyStaleMatchingKinds(t *testing.T) {
	ctx := context.Background()
	dir := NewDir(t.TempDir())
	now := time.Now()

	stale := Format(KindSummary, now.Add(-48*time.Hour), "old", "json")
	fresh := Format(KindSummary, now, "new", "json")
	staleSelection := Format(KindSelection, now.Add(-48*time.Hour), "", "json")
	for _, name := range []string{stale, fresh, staleSelection} {
		if err := dir.Write(ctx, name, []byte("{}")); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	result := Prune(ctx, dir, 24*time.Hour, []string{KindSummary}, nil)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors %+v", result.Errors)
	}
	if len(result.Removed) != 1 || filepath.Base(result.Removed[0]) != stale {
		t.Fatalf("unexpected removals %+v", result.Removed)
	}
	if !dir.Exists(fresh) || !dir.Exists(staleSelection) {
		t.Fatal("fresh summary and unselected kinds must survive")
	}
}

func TestPruneMissingDirectory(t *testing.T) {
	result := Prune(context.Background(), NewDir(filepath.Join(t.TempDir(), "none")), time.Hour, nil, nil)
	if len(result.Errors) != 0 || len(result.Removed) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}
