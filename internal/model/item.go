package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Item is a pipeline item as it travels between stages. Selection snapshots,
// worker summaries and export batches all carry the same shape.
type Item struct {
	ID      ID
	Slug    string
	OldSlug string
	Title   string
	URL     string
	Href    string
	Excerpt string

	// Extra holds fields this package does not interpret.
	Extra map[string]json.RawMessage
}

var knownItemFields = map[string]struct{}{
	"id": {}, "slug": {}, "oldSlug": {}, "title": {}, "url": {}, "href": {}, "excerpt": {},
}

// Locator returns the fetchable address of the item, preferring url over href.
func (it Item) Locator() string {
	if u := strings.TrimSpace(it.URL); u != "" {
		return u
	}
	return strings.TrimSpace(it.Href)
}

// Resolved reports whether the item carries a persistent identifier.
func (it Item) Resolved() bool {
	return it.ID.Valid()
}

// DedupKey identifies an item for merging. Priority is slug, then id, then
// url, then the item's canonical encoding.
func (it Item) DedupKey() string {
	if slug := strings.TrimSpace(it.Slug); slug != "" {
		return "slug:" + slug
	}
	if it.ID.Valid() {
		return "id:" + it.ID.String()
	}
	if u := strings.TrimSpace(it.URL); u != "" {
		return "url:" + u
	}
	raw, err := json.Marshal(it)
	if err != nil {
		return fmt.Sprintf("raw:%v", it)
	}
	return "raw:" + string(raw)
}

// Clone returns a deep copy of the item.
func (it Item) Clone() Item {
	out := it
	if it.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(it.Extra))
		for k, v := range it.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// SetSlug replaces the slug, keeping the previous value in OldSlug when it
// changes.
func (it *Item) SetSlug(slug string) {
	slug = strings.TrimSpace(slug)
	if slug == "" || slug == it.Slug {
		return
	}
	if prev := strings.TrimSpace(it.Slug); prev != "" {
		it.OldSlug = prev
	}
	it.Slug = slug
}

func (it *Item) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*it = Item{}
	for key, raw := range fields {
		if _, known := knownItemFields[key]; !known {
			if it.Extra == nil {
				it.Extra = make(map[string]json.RawMessage)
			}
			it.Extra[key] = raw
			continue
		}
		if key == "id" {
			it.ID = ParseID(raw)
			continue
		}
		value := decodeText(raw)
		switch key {
		case "slug":
			it.Slug = value
		case "oldSlug":
			it.OldSlug = value
		case "title":
			it.Title = value
		case "url":
			it.URL = value
		case "href":
			it.Href = value
		case "excerpt":
			it.Excerpt = value
		}
	}
	return nil
}

func (it Item) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(it.Extra)+7)
	for k, v := range it.Extra {
		out[k] = v
	}
	if it.ID.Valid() {
		out["id"] = it.ID
	}
	setText(out, "slug", it.Slug)
	setText(out, "oldSlug", it.OldSlug)
	setText(out, "title", it.Title)
	setText(out, "url", it.URL)
	setText(out, "href", it.Href)
	setText(out, "excerpt", it.Excerpt)
	return json.Marshal(out)
}

func setText(out map[string]any, key, value string) {
	if value != "" {
		out[key] = value
	}
}

// decodeText reads a string field, tolerating numbers written in its place.
func decodeText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
