package aggregator

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"cointist/internal/artifacts"
	"cointist/internal/logging"
	"cointist/internal/model"
)

// Messages reported when no summary is returned.
const (
	MessageNoStore   = "not found, no tmp folder"
	MessageNoSummary = "no summary"
	MessageNoNew     = "no new summary"
	MessageTimedOut  = "timed out waiting for summary"
)

const defaultWindow = 2 * time.Minute

// Backfiller fills in missing identifiers on merged items in place and
// returns how many it resolved.
type Backfiller interface {
	Backfill(ctx context.Context, items []model.Item) (int, error)
}

// Options configures an Aggregator.
type Options struct {
	// Artifacts holds summaries and invocation records.
	Artifacts artifacts.Store
	// Logs holds worker logs scanned for the terminal marker.
	Logs artifacts.Store
	// Window is how far below the run's upper bound summaries still count.
	Window time.Duration
	// AnchorOnInvocation bounds the run below by its invocation start.
	// See anchorLower.
	AnchorOnInvocation bool
	Backfiller         Backfiller
	Logger             *slog.Logger
}

// Aggregator answers "what does the current run look like" queries.
type Aggregator struct {
	artifacts  artifacts.Store
	logs       artifacts.Store
	window     time.Duration
	anchor     bool
	backfiller Backfiller
	logger     *slog.Logger
}

// Boundary describes the time range accepted as the current run.
type Boundary struct {
	Lower    time.Time `json:"lower"`
	Upper    time.Time `json:"upper"`
	Source   string    `json:"source"`
	Marker   string    `json:"marker,omitempty"`
	Anchored bool      `json:"anchored,omitempty"`
}

// Boundary sources.
const (
	SourceMarker    = "marker"
	SourceFilenames = "filenames"
)

// Result is the answer to a Latest query.
type Result struct {
	OK        bool                     `json:"ok"`
	Found     bool                     `json:"found"`
	Message   string                   `json:"message,omitempty"`
	FileCount int                      `json:"fileCount,omitempty"`
	Mtime     int64                    `json:"mtime,omitempty"`
	Summary   *model.AggregatedSummary `json:"summary,omitempty"`
	Boundary  *Boundary                `json:"boundary,omitempty"`
	Backfills int                      `json:"backfilled,omitempty"`
}

type parsedSummary struct {
	entry   artifacts.Entry
	summary model.Summary
}

// recency is the embedded creation time, falling back to the filename stamp.
// Only a marker-selected summary uses it; the window filter always compares
// filename stamps.
func (p parsedSummary) recency() time.Time {
	if !p.summary.CreatedAt.IsZero() {
		return p.summary.CreatedAt
	}
	return p.entry.Stamp()
}

// New constructs an Aggregator.
func New(opts Options) *Aggregator {
	window := opts.Window
	if window <= 0 {
		window = defaultWindow
	}
	return &Aggregator{
		artifacts:  opts.Artifacts,
		logs:       opts.Logs,
		window:     window,
		anchor:     opts.AnchorOnInvocation,
		backfiller: opts.Backfiller,
		logger:     logging.NewComponentLogger(opts.Logger, "aggregator"),
	}
}

// Latest merges the current run's summaries. When since is set and nothing
// newer than it survives, Found is false with MessageNoNew.
func (a *Aggregator) Latest(ctx context.Context, since *time.Time) (Result, error) {
	entries, err := a.artifacts.List(ctx, artifacts.KindSummary+"-")
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		a.logger.Debug("artifact store unreadable", logging.Error(err))
		return Result{OK: true, Message: MessageNoStore}, nil
	}
	if len(entries) == 0 {
		return Result{OK: true, Message: MessageNoSummary}, nil
	}
	if since != nil && !newerThan(newestMtime(entries), *since) {
		return Result{OK: true, Message: MessageNoNew}, nil
	}

	parsed := a.parseAll(ctx, entries)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if len(parsed) == 0 {
		return Result{OK: true, Message: MessageNoSummary}, nil
	}

	boundary := a.boundary(ctx, parsed)
	survivors := parsed[:0:0]
	for _, p := range parsed {
		stamp := p.entry.Stamp()
		if stamp.Before(boundary.Lower) || stamp.After(boundary.Upper) {
			continue
		}
		survivors = append(survivors, p)
	}
	if len(survivors) == 0 {
		return Result{OK: true, Message: MessageNoSummary, Boundary: &boundary}, nil
	}

	survivingEntries := make([]artifacts.Entry, len(survivors))
	for i, p := range survivors {
		survivingEntries[i] = p.entry
	}
	latest := newestMtime(survivingEntries)
	if since != nil && !newerThan(latest, *since) {
		return Result{OK: true, Message: MessageNoNew, Boundary: &boundary}, nil
	}

	summaries := make([]model.Summary, len(survivors))
	for i, p := range survivors {
		summaries[i] = p.summary
	}
	merged := Merge(summaries)
	summary := &model.AggregatedSummary{Items: merged, FileCount: len(survivors), LatestMtime: latest}
	result := Result{
		OK:        true,
		Found:     true,
		FileCount: len(survivors),
		Mtime:     latest.UnixMilli(),
		Summary:   summary,
		Boundary:  &boundary,
	}

	if a.backfiller != nil && hasUnresolved(merged) {
		n, err := a.backfiller.Backfill(ctx, summary.Items)
		if err != nil {
			logging.WarnWithContext(a.logger, "summary backfill failed", "summary_backfill_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "export will retry resolution"),
				logging.String(logging.FieldImpact, "summary items returned without ids"),
			)
		}
		result.Backfills = n
	}

	a.logger.Debug("summary aggregated",
		logging.Int("files", len(survivors)),
		logging.Int("items", len(merged)),
		logging.String("boundary_source", boundary.Source),
		logging.Time("lower", boundary.Lower),
		logging.Time("upper", boundary.Upper),
	)
	return result, nil
}

func (a *Aggregator) parseAll(ctx context.Context, entries []artifacts.Entry) []parsedSummary {
	parsed := make([]parsedSummary, 0, len(entries))
	for _, entry := range entries {
		if ctx.Err() != nil {
			return parsed
		}
		data, err := a.artifacts.Read(ctx, entry.Name)
		if err != nil {
			a.logger.Debug("summary unreadable", logging.String("file", entry.Name), logging.Error(err))
			continue
		}
		summary, err := model.ParseSummary(data)
		if err != nil {
			a.logger.Debug("summary unparsable", logging.String("file", entry.Name), logging.Error(err))
			continue
		}
		summary.SourceFile = entry.Name
		parsed = append(parsed, parsedSummary{entry: entry, summary: summary})
	}
	return parsed
}

// Merge deduplicates items across summaries, keeping the first occurrence per
// dedup key. Summaries are visited in filename order so repeated merges of the
// same files give the same result regardless of listing order.
func Merge(summaries []model.Summary) []model.Item {
	ordered := append([]model.Summary(nil), summaries...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SourceFile < ordered[j].SourceFile
	})
	seen := make(map[string]struct{})
	items := []model.Item{}
	for _, summary := range ordered {
		for _, item := range summary.Items {
			key := item.DedupKey()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			items = append(items, item.Clone())
		}
	}
	return items
}

func newestMtime(entries []artifacts.Entry) time.Time {
	var newest time.Time
	for _, e := range entries {
		if e.ModTime.After(newest) {
			newest = e.ModTime
		}
	}
	return newest
}

// newerThan compares at millisecond precision, the resolution clients echo
// back as since.
func newerThan(mtime, since time.Time) bool {
	return mtime.UnixMilli() > since.UnixMilli()
}

func hasUnresolved(items []model.Item) bool {
	for _, item := range items {
		if !item.Resolved() {
			return true
		}
	}
	return false
}
