package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"cointist/internal/fileutil"
	"cointist/internal/logging"
	"cointist/internal/model"
	"cointist/internal/services"
	"cointist/internal/slugmap"
)

const lockRetryDelay = 25 * time.Millisecond

// Options configures a Gate.
type Options struct {
	// Path is the canonical export file.
	Path      string
	SlugMap   *slugmap.Map
	Populator Populator
	Logger    *slog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Gate validates batches and writes the canonical export.
type Gate struct {
	path      string
	slugs     *slugmap.Map
	populator Populator
	logger    *slog.Logger
	now       func() time.Time
}

// Document is the on-disk export format.
type Document struct {
	ExportedAt time.Time    `json:"exportedAt"`
	Count      int          `json:"count"`
	Items      []model.Item `json:"items"`
}

// Result reports an accepted export.
type Result struct {
	OK      bool   `json:"ok"`
	Path    string `json:"path"`
	Count   int    `json:"count"`
	Patched int    `json:"patched,omitempty"`
}

// New constructs a Gate.
func New(opts Options) *Gate {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	slugs := opts.SlugMap
	if slugs == nil {
		slugs = slugmap.Open("", opts.Logger)
	}
	return &Gate{
		path:      strings.TrimSpace(opts.Path),
		slugs:     slugs,
		populator: opts.Populator,
		logger:    logging.NewComponentLogger(opts.Logger, "export"),
		now:       now,
	}
}

// Path returns the canonical export path.
func (g *Gate) Path() string { return g.path }

// Export validates items and, when every item has an id, writes them. The
// caller's slice is not modified. Unresolved batches return *RejectionError.
func (g *Gate) Export(ctx context.Context, items []model.Item) (Result, error) {
	if g.path == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, "export", "export", "no export path configured", nil)
	}
	if len(items) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, "export", "export", "batch is empty", nil)
	}

	batch := make([]model.Item, len(items))
	for i, item := range items {
		batch[i] = item.Clone()
	}

	invalid := invalidIndexes(batch)
	patched := 0
	if len(invalid) > 0 {
		g.populate(ctx, batch)
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := g.slugs.Reload(); err != nil {
			logging.WarnWithContext(g.logger, "slug map reload failed", "slugmap_reload_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the slug map file"),
				logging.String(logging.FieldImpact, "export patches from the last good copy"),
			)
		}
		patched = g.patch(batch, invalid)
		invalid = invalidIndexes(batch)
	}
	if len(invalid) > 0 {
		rejection := &RejectionError{InvalidIndexes: invalid, MissingCount: len(invalid)}
		g.logger.Info("export rejected",
			logging.String(logging.FieldEventType, "export_rejected"),
			logging.Int("missing", len(invalid)),
			logging.Any("invalid_indexes", invalid),
		)
		return Result{}, rejection
	}

	if err := g.write(ctx, batch); err != nil {
		return Result{}, err
	}
	g.record(ctx, batch)

	g.logger.Info("export written",
		logging.String(logging.FieldEventType, "export_written"),
		logging.String("path", g.path),
		logging.Int("count", len(batch)),
		logging.Int("patched", patched),
	)
	return Result{OK: true, Path: g.path, Count: len(batch), Patched: patched}, nil
}

func (g *Gate) populate(ctx context.Context, batch []model.Item) {
	if g.populator == nil {
		return
	}
	if err := g.populator.Populate(ctx, batch); err != nil {
		logging.WarnWithContext(g.logger, "populate step failed", "export_populate_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check export.populate_command or worker logs"),
			logging.String(logging.FieldImpact, "export relies on the existing slug map"),
		)
	}
}

// patch fills ids from the slug map, looking up the slug and then the old
// slug. It returns how many items were patched.
func (g *Gate) patch(batch []model.Item, indexes []int) int {
	patched := 0
	for _, idx := range indexes {
		item := &batch[idx]
		for _, key := range []string{item.Slug, item.OldSlug} {
			entry, ok := g.slugs.Lookup(key)
			if !ok {
				continue
			}
			item.ID = entry.ID
			item.SetSlug(entry.Slug)
			patched++
			break
		}
	}
	return patched
}

func (g *Gate) write(ctx context.Context, batch []model.Item) error {
	if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "export", "create export directory", filepath.Dir(g.path), err)
	}
	lock := flock.New(g.path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return services.Wrap(services.ErrTransient, "export", "lock export", g.path, err)
	}
	if !locked {
		return services.Wrap(services.ErrTransient, "export", "lock export", "lock not acquired", nil)
	}
	defer func() { _ = lock.Unlock() }()

	doc := Document{ExportedAt: g.now().UTC(), Count: len(batch), Items: batch}
	if err := fileutil.WriteJSONAtomic(g.path, doc); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

func (g *Gate) record(ctx context.Context, batch []model.Item) {
	entries := make([]slugmap.Entry, 0, len(batch))
	for _, item := range batch {
		entries = append(entries, slugmap.Entry{Slug: item.Slug, OldSlug: item.OldSlug, ID: item.ID})
	}
	if _, err := g.slugs.Record(ctx, entries...); err != nil {
		logging.WarnWithContext(g.logger, "slug map update failed", "slugmap_record_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check slug map permissions"),
			logging.String(logging.FieldImpact, "future exports cannot patch these items from the map"),
		)
	}
}

func invalidIndexes(batch []model.Item) []int {
	var invalid []int
	for idx, item := range batch {
		if !item.Resolved() {
			invalid = append(invalid, idx)
		}
	}
	return invalid
}

// Load reads a previously written export.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	items, fields, err := model.DecodeItems(data)
	if err != nil {
		return Document{}, fmt.Errorf("parse export %s: %w", path, err)
	}
	doc := Document{Items: items, Count: len(items)}
	if raw, ok := fields["exportedAt"]; ok {
		if ts, ok := model.ParseTimestamp(raw); ok {
			doc.ExportedAt = ts
		}
	}
	return doc, nil
}
