package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Manifest is the selection manifest written at registration.
type Manifest struct {
	CreatedAt time.Time `json:"createdAt"`
	Keys      []string  `json:"keys"`
	Items     []Item    `json:"items"`
}

// Invocation records one run registration. It is written once and never
// modified.
type Invocation struct {
	Token     string         `json:"token"`
	StartedAt time.Time      `json:"startedAt"`
	Items     []Item         `json:"items"`
	Workers   []WorkerRecord `json:"workers,omitempty"`
}

// WorkerRecord captures what was dispatched for one item of a run.
type WorkerRecord struct {
	Slug       string `json:"slug"`
	PID        int    `json:"pid,omitempty"`
	LogPath    string `json:"logPath,omitempty"`
	OutputPath string `json:"outputPath,omitempty"`
	Dispatched bool   `json:"dispatched"`
	Error      string `json:"error,omitempty"`
}

// Worker returns the record for slug. An empty slug selects the only worker
// of a single-item run.
func (inv Invocation) Worker(slug string) (WorkerRecord, bool) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		if len(inv.Workers) == 1 {
			return inv.Workers[0], true
		}
		return WorkerRecord{}, false
	}
	for _, worker := range inv.Workers {
		if worker.Slug == slug {
			return worker, true
		}
	}
	return WorkerRecord{}, false
}

// Summary is a worker-produced artifact. Workers write either an object with
// an items array or a bare array of items.
type Summary struct {
	SourceFile string    `json:"sourceFile,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitzero"`
	Token      string    `json:"token,omitempty"`
	Items      []Item    `json:"items"`
}

// AggregatedSummary is the merged, deduplicated view over one run's summaries.
// It is recomputed on every query and never persisted.
type AggregatedSummary struct {
	Items       []Item    `json:"items"`
	FileCount   int       `json:"fileCount"`
	LatestMtime time.Time `json:"latestMtime"`
}

// ErrEmptyDocument reports a document with no content.
var ErrEmptyDocument = errors.New("empty document")

// DecodeItems reads either {"items": [...]} or a bare item array. The
// remaining top-level fields of an object document are returned as well.
func DecodeItems(data []byte) ([]Item, map[string]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil, ErrEmptyDocument
	}
	switch data[0] {
	case '[':
		var items []Item
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, nil, err
		}
		return items, nil, nil
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, nil, err
		}
		var items []Item
		if raw, ok := fields["items"]; ok && !isNull(raw) {
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, nil, fmt.Errorf("decode items: %w", err)
			}
		}
		delete(fields, "items")
		return items, fields, nil
	default:
		return nil, nil, fmt.Errorf("unexpected document start %q", data[0])
	}
}

// ParseSummary decodes a worker summary.
func ParseSummary(data []byte) (Summary, error) {
	items, fields, err := DecodeItems(data)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Items: items}
	if raw, ok := fields["createdAt"]; ok {
		summary.CreatedAt, _ = ParseTimestamp(raw)
	}
	if raw, ok := fields["token"]; ok {
		summary.Token = decodeText(raw)
	}
	if raw, ok := fields["sourceFile"]; ok {
		summary.SourceFile = decodeText(raw)
	}
	return summary, nil
}

// ParseInvocation decodes an invocation record.
func ParseInvocation(data []byte) (Invocation, error) {
	var inv Invocation
	if err := json.Unmarshal(data, &inv); err != nil {
		return Invocation{}, err
	}
	if strings.TrimSpace(inv.Token) == "" {
		return Invocation{}, errors.New("invocation missing token")
	}
	return inv, nil
}

// ParseTimestamp accepts epoch milliseconds (number or numeric string) and
// RFC3339 strings.
func ParseTimestamp(raw json.RawMessage) (time.Time, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return time.Time{}, false
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return time.Time{}, false
		}
		text = strings.TrimSpace(text)
		if ts, err := time.Parse(time.RFC3339Nano, text); err == nil {
			return ts, true
		}
	}
	ms, err := strconv.ParseFloat(text, 64)
	if err != nil || ms <= 0 || math.IsInf(ms, 0) || math.IsNaN(ms) {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)), true
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
