package snapshot

import (
	"fmt"
	"os"
	"strings"

	"cointist/internal/model"
)

// Snapshot is a loaded selection snapshot.
type Snapshot struct {
	Path  string
	Items []model.Item
}

// Match pairs a requested key with the snapshot item it selected.
type Match struct {
	Key   string
	Index int
	Item  model.Item
}

// Load reads a snapshot document: {"items": [...]} or a bare item array.
func Load(path string) (*Snapshot, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("snapshot path not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	items, _, err := model.DecodeItems(data)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return &Snapshot{Path: path, Items: items}, nil
}

// Select returns the snapshot items matching keys in request order. A key
// matches an item when it equals the item's id, slug, oldSlug, url, href or
// title. Each item is selected at most once; keys that match nothing are
// returned separately.
func (s *Snapshot) Select(keys []string) ([]Match, []string) {
	var (
		matches   []Match
		unmatched []string
		taken     = make(map[int]struct{})
	)
	for _, raw := range keys {
		key := strings.TrimSpace(raw)
		if key == "" {
			continue
		}
		found := false
		for i, item := range s.Items {
			if !matchesKey(item, key) {
				continue
			}
			found = true
			if _, dup := taken[i]; dup {
				continue
			}
			taken[i] = struct{}{}
			matches = append(matches, Match{Key: key, Index: i, Item: item.Clone()})
		}
		if !found {
			unmatched = append(unmatched, key)
		}
	}
	return matches, unmatched
}

func matchesKey(item model.Item, key string) bool {
	if item.ID.Valid() && item.ID.String() == key {
		return true
	}
	for _, candidate := range []string{item.Slug, item.OldSlug, item.URL, item.Href, item.Title} {
		if candidate = strings.TrimSpace(candidate); candidate != "" && candidate == key {
			return true
		}
	}
	return false
}
