package resolver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"cointist/internal/artifacts"
	"cointist/internal/model"
)

var (
	persistedPattern = regexp.MustCompile(`persisted as\s*(\{.*)$`)
	lineStampPattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2}))`)
	bracketPattern   = regexp.MustCompile(`\[(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2}))\]`)
	jsonStampPattern = regexp.MustCompile(`"ts"\s*:\s*"([^"]+)"`)
)

// LogScan recovers identifiers from "persisted as {json}" records that
// workers print after saving an item.
type LogScan struct {
	logs    artifacts.Store
	timeout time.Duration
}

// NewLogScan returns the logScan tier over the worker log store. A positive
// timeout bounds each item's scan.
func NewLogScan(logs artifacts.Store, timeout time.Duration) *LogScan {
	return &LogScan{logs: logs, timeout: timeout}
}

func (l *LogScan) Tier() model.Tier { return model.TierLogScan }

// Resolve scans every worker log that mentions the item. Within a log, only
// records after the first mention count. The chronologically last record
// wins; records without a timestamp only win when none has one.
func (l *LogScan) Resolve(ctx context.Context, item model.Item) (model.Outcome, bool, error) {
	needles := logNeedles(item)
	if len(needles) == 0 || l.logs == nil {
		return model.Outcome{}, false, nil
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	entries, err := l.logs.List(ctx, "")
	if err != nil {
		if artifacts.IsNotExist(err) {
			return model.Outcome{}, false, nil
		}
		return model.Outcome{}, false, err
	}

	var (
		best  persistedRecord
		found bool
	)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return model.Outcome{}, false, err
		}
		data, err := l.logs.Read(ctx, entry.Name)
		if err != nil {
			continue
		}
		record, ok := lastPersisted(data, needles)
		if !ok {
			continue
		}
		record.source = entry.Name
		if !found || record.later(best) {
			best = record
			found = true
		}
	}
	if !found {
		return model.Outcome{}, false, nil
	}
	return model.Outcome{
		ID:      best.item.ID,
		Slug:    strings.TrimSpace(best.item.Slug),
		Tier:    model.TierLogScan,
		Recency: best.stamp,
		Source:  best.source,
	}, true, nil
}

type persistedRecord struct {
	item   model.Item
	stamp  time.Time
	source string
}

// later reports whether r should replace current. Entries are visited newest
// log first, so an untimed record never displaces an earlier find.
func (r persistedRecord) later(current persistedRecord) bool {
	switch {
	case r.stamp.IsZero():
		return false
	case current.stamp.IsZero():
		return true
	default:
		return r.stamp.After(current.stamp)
	}
}

// logNeedles matches each identifier only as a whole token, so "btc" does
// not match a line naming "btc-rallies".
func logNeedles(item model.Item) []*regexp.Regexp {
	needles := make([]*regexp.Regexp, 0, 3)
	for _, n := range []string{item.OldSlug, item.Slug, item.Title} {
		if n = strings.TrimSpace(n); n != "" {
			needles = append(needles, regexp.MustCompile(`(?:^|[^A-Za-z0-9-])`+regexp.QuoteMeta(n)+`(?:$|[^A-Za-z0-9-])`))
		}
	}
	return needles
}

// lastPersisted finds the first needle present in data and returns the last
// persisted record after it. A record is stamped by the nearest timestamp
// marker on its line or, failing that, on a preceding line.
func lastPersisted(data []byte, needles []*regexp.Regexp) (persistedRecord, bool) {
	lines := splitLines(data)
	start := -1
	for _, needle := range needles {
		for idx, line := range lines {
			if needle.MatchString(line) {
				start = idx
				break
			}
		}
		if start >= 0 {
			break
		}
	}
	if start < 0 {
		return persistedRecord{}, false
	}

	var (
		lastStamp time.Time
		best      persistedRecord
		found     bool
	)
	for idx, line := range lines {
		stamp, stamped := lineStamp(line)
		if stamped {
			lastStamp = stamp
		}
		if idx < start {
			continue
		}
		match := persistedPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		var record model.Item
		if err := json.NewDecoder(strings.NewReader(match[1])).Decode(&record); err != nil {
			continue
		}
		if !record.Resolved() {
			continue
		}
		candidate := persistedRecord{item: record, stamp: lastStamp}
		if !found || !candidate.stamp.Before(best.stamp) || best.stamp.IsZero() {
			best = candidate
			found = true
		}
	}
	return best, found
}

func lineStamp(line string) (time.Time, bool) {
	for _, pattern := range []*regexp.Regexp{lineStampPattern, bracketPattern, jsonStampPattern} {
		match := pattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		if parsed, err := time.Parse(time.RFC3339Nano, match[1]); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func splitLines(data []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}
