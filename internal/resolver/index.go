package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cointist/internal/artifacts"
	"cointist/internal/model"
)

// Evidence is one item found in a summary artifact.
type Evidence struct {
	Item    model.Item
	Source  string
	Recency time.Time
}

type cachedSummary struct {
	modTime  time.Time
	size     int64
	evidence []Evidence
}

// SummaryIndex caches the parsed items of every summary artifact. Refresh
// re-lists the store and re-reads only files whose size or mtime changed.
type SummaryIndex struct {
	store artifacts.Store

	mu      sync.RWMutex
	files   map[string]cachedSummary
	ordered []Evidence
}

// NewSummaryIndex returns an empty index over store.
func NewSummaryIndex(store artifacts.Store) *SummaryIndex {
	return &SummaryIndex{store: store, files: make(map[string]cachedSummary)}
}

// Prepare refreshes the index; it satisfies Preparer.
func (x *SummaryIndex) Prepare(ctx context.Context) error { return x.Refresh(ctx) }

// Refresh brings the index in line with the store. Unparsable summaries are
// skipped.
func (x *SummaryIndex) Refresh(ctx context.Context) error {
	if x == nil || x.store == nil {
		return nil
	}
	entries, err := x.store.List(ctx, artifacts.KindSummary+"-")
	if err != nil && !artifacts.IsNotExist(err) {
		return fmt.Errorf("list summaries: %w", err)
	}

	x.mu.RLock()
	previous := x.files
	x.mu.RUnlock()

	files := make(map[string]cachedSummary, len(entries))
	ordered := make([]Evidence, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		cached, ok := previous[entry.Name]
		if !ok || !cached.modTime.Equal(entry.ModTime) || cached.size != entry.Size {
			cached = cachedSummary{modTime: entry.ModTime, size: entry.Size}
			data, readErr := x.store.Read(ctx, entry.Name)
			if readErr != nil {
				continue
			}
			summary, parseErr := model.ParseSummary(data)
			if parseErr != nil {
				files[entry.Name] = cached
				continue
			}
			recency := summary.CreatedAt
			if recency.IsZero() {
				recency = entry.Stamp()
			}
			for _, item := range summary.Items {
				cached.evidence = append(cached.evidence, Evidence{Item: item, Source: entry.Name, Recency: recency})
			}
		}
		files[entry.Name] = cached
		ordered = append(ordered, cached.evidence...)
	}

	x.mu.Lock()
	x.files = files
	x.ordered = ordered
	x.mu.Unlock()
	return nil
}

// Evidence returns every indexed item, newest summary first.
func (x *SummaryIndex) Evidence() []Evidence {
	if x == nil {
		return nil
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.ordered
}
