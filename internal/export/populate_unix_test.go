//go:build !windows

package export_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cointist/internal/export"
	"cointist/internal/model"
	"cointist/internal/testsupport"
)

func TestCommandPopulatorWritesSlugMap(t *testing.T) {
	script := filepath.Join(t.TempDir(), "populate.sh")
	body := "#!/bin/sh\ncat > /dev/null\nprintf '[{\"slug\":\"delta\",\"id\":5}]' > \"$COINTIST_SLUG_MAP\"\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	cfg := testsupport.NewConfig(t)
	cfg.Export.PopulateCommand = script
	gate, _ := newGate(t, cfg)

	result, err := gate.Export(context.Background(), []model.Item{{Slug: "delta"}})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if result.Patched != 1 {
		t.Fatalf("expected patched item, got %+v", result)
	}
}

func TestCommandPopulatorReportsFailure(t *testing.T) {
	populator, err := export.NewCommandPopulator("sh -c 'echo nope >&2; exit 3'", "", nil, 0, nil)
	if err != nil {
		t.Fatalf("NewCommandPopulator: %v", err)
	}
	if err := populator.Populate(context.Background(), nil); err == nil {
		t.Fatal("expected failure from non-zero exit")
	}
}
