package slugmap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"cointist/internal/fileutil"
	"cointist/internal/logging"
	"cointist/internal/model"
)

const lockRetryDelay = 25 * time.Millisecond

// Entry is one exported slug and its identifier.
type Entry struct {
	Slug       string    `json:"slug"`
	ID         model.ID  `json:"id"`
	OldSlug    string    `json:"oldSlug,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Map provides thread-safe access to the slug map file.
type Map struct {
	path    string
	logger  *slog.Logger
	mu      sync.RWMutex
	entries map[string]Entry  // keyed by slug
	aliases map[string]string // old slug -> slug
}

// Open loads the map at path. A missing file yields an empty map; an
// unreadable one is logged and treated as empty. An empty path disables
// persistence.
func Open(path string, logger *slog.Logger) *Map {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Map{
		path:    strings.TrimSpace(path),
		logger:  logging.NewComponentLogger(logger, "slugmap"),
		entries: make(map[string]Entry),
		aliases: make(map[string]string),
	}
	if m.path == "" {
		return m
	}
	if err := m.Reload(); err != nil {
		m.logger.Warn("failed to load slug map",
			logging.String(logging.FieldEventType, "slugmap_load_failed"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the slug map file for corruption"),
			logging.String(logging.FieldImpact, "export backfill will not use previously exported ids"))
	}
	return m
}

// Path returns the backing file path.
func (m *Map) Path() string { return m.path }

// Lookup returns the entry for slug, matching previous slugs as well.
func (m *Map) Lookup(slug string) (Entry, bool) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Entry{}, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if entry, ok := m.entries[slug]; ok {
		return entry, true
	}
	if current, ok := m.aliases[slug]; ok {
		entry, ok := m.entries[current]
		return entry, ok
	}
	return Entry{}, false
}

// Count returns the number of entries.
func (m *Map) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// List returns all entries sorted by slug.
func (m *Map) List() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedEntries(m.entries)
}

// Reload replaces the in-memory state with the file contents.
func (m *Map) Reload() error {
	if m.path == "" {
		return nil
	}
	entries, err := readEntries(m.path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.replace(entries)
	m.mu.Unlock()

	m.logger.Debug("loaded slug map",
		logging.Int("entry_count", len(entries)),
		logging.String("path", m.path))
	return nil
}

// Record adds or updates entries and persists the merged map. Entries
// without a slug or a valid id are ignored. The file is re-read under lock
// first so that concurrent writers are merged.
func (m *Map) Record(ctx context.Context, entries ...Entry) (int, error) {
	accepted := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		entry.Slug = strings.TrimSpace(entry.Slug)
		entry.OldSlug = strings.TrimSpace(entry.OldSlug)
		if entry.Slug == "" || !entry.ID.Valid() {
			continue
		}
		if entry.RecordedAt.IsZero() {
			entry.RecordedAt = time.Now().UTC()
		}
		accepted = append(accepted, entry)
	}
	if len(accepted) == 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.path == "" {
		m.apply(accepted)
		return len(accepted), nil
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return 0, fmt.Errorf("create slug map directory: %w", err)
	}
	lock := flock.New(m.path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return 0, fmt.Errorf("lock slug map: %w", err)
	}
	if !locked {
		return 0, fmt.Errorf("lock slug map: not acquired")
	}
	defer func() { _ = lock.Unlock() }()

	current, err := readEntries(m.path)
	if err != nil {
		return 0, err
	}
	m.replace(current)
	m.apply(accepted)

	if err := fileutil.WriteJSONAtomic(m.path, sortedEntries(m.entries)); err != nil {
		return 0, fmt.Errorf("persist slug map: %w", err)
	}

	m.logger.Debug("recorded slug map entries",
		logging.Int("recorded", len(accepted)),
		logging.Int("entry_count", len(m.entries)))
	return len(accepted), nil
}

func (m *Map) replace(entries []Entry) {
	m.entries = make(map[string]Entry, len(entries))
	m.aliases = make(map[string]string)
	m.apply(entries)
}

func (m *Map) apply(entries []Entry) {
	for _, entry := range entries {
		if prev, ok := m.entries[entry.Slug]; ok && entry.OldSlug == "" {
			entry.OldSlug = prev.OldSlug
		}
		m.entries[entry.Slug] = entry
		if entry.OldSlug != "" && entry.OldSlug != entry.Slug {
			m.aliases[entry.OldSlug] = entry.Slug
			// A renamed slug must not shadow its successor.
			if stale, ok := m.entries[entry.OldSlug]; ok && stale.ID == entry.ID {
				delete(m.entries, entry.OldSlug)
			}
		}
	}
}

func readEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read slug map: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err == nil {
		valid := entries[:0]
		for _, entry := range entries {
			if strings.TrimSpace(entry.Slug) != "" && entry.ID.Valid() {
				valid = append(valid, entry)
			}
		}
		return valid, nil
	}
	// Hand-maintained maps may be a plain {"slug": id} object.
	var plain map[string]model.ID
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, fmt.Errorf("parse slug map: %w", err)
	}
	entries = make([]Entry, 0, len(plain))
	for slug, id := range plain {
		if id.Valid() {
			entries = append(entries, Entry{Slug: slug, ID: id})
		}
	}
	return entries, nil
}

func sortedEntries(entries map[string]Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}
