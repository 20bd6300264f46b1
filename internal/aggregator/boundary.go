package aggregator

import (
	"bufio"
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"cointist/internal/artifacts"
	"cointist/internal/logging"
	"cointist/internal/textutil"
)

// invocationSkew tolerates clock differences between the registrar writing
// the invocation and workers stamping their summaries.
const invocationSkew = time.Second

var markerPattern = regexp.MustCompile(`(?:final summary:|final_summary=)\s*("[^"]+"|'[^']+'|\S+)`)

func (a *Aggregator) boundary(ctx context.Context, parsed []parsedSummary) Boundary {
	var (
		b     Boundary
		upper *parsedSummary
	)
	if marker, ok := a.findFinalMarker(ctx); ok {
		name := filepath.Base(marker)
		for i := range parsed {
			if parsed[i].entry.Name == name {
				upper = &parsed[i]
				b.Source = SourceMarker
				b.Marker = marker
				break
			}
		}
		if upper == nil {
			a.logger.Debug("final summary marker references missing file", logging.String("marker", marker))
		}
	}
	if upper != nil {
		b.Upper = upper.recency()
	} else {
		for i := range parsed {
			if upper == nil || parsed[i].entry.Stamp().After(upper.entry.Stamp()) {
				upper = &parsed[i]
			}
		}
		b.Source = SourceFilenames
		b.Upper = upper.entry.Stamp()
	}
	b.Lower = b.Upper.Add(-a.window)

	if a.anchor {
		a.anchorLower(ctx, &b, upper.summary.Token)
	}
	return b
}

// anchorLower moves the lower bound to the start of the run that produced the
// upper bound. An invocation matched by token may widen the window; the
// newest invocation before the upper bound may only narrow it.
func (a *Aggregator) anchorLower(ctx context.Context, b *Boundary, token string) {
	entries, err := a.artifacts.List(ctx, artifacts.KindInvocation+"-")
	if err != nil {
		return
	}
	if token = strings.TrimSpace(token); token != "" {
		suffix := textutil.SanitizeToken(token)
		for _, entry := range entries {
			if entry.Named && entry.Parsed.Suffix == suffix && !entry.Parsed.Stamp.After(b.Upper) {
				b.Lower = entry.Parsed.Stamp.Add(-invocationSkew)
				b.Anchored = true
				return
			}
		}
	}
	for _, entry := range entries {
		if !entry.Named || entry.Parsed.Stamp.After(b.Upper) {
			continue
		}
		if anchored := entry.Parsed.Stamp.Add(-invocationSkew); anchored.After(b.Lower) {
			b.Lower = anchored
			b.Anchored = true
		}
		return
	}
}

// findFinalMarker returns the summary path named by the last terminal marker
// in the newest worker log that has one.
func (a *Aggregator) findFinalMarker(ctx context.Context) (string, bool) {
	if a.logs == nil {
		return "", false
	}
	entries, err := a.logs.List(ctx, "")
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return "", false
		}
		data, err := a.logs.Read(ctx, entry.Name)
		if err != nil {
			continue
		}
		if marker, ok := lastMarker(data); ok {
			return marker, true
		}
	}
	return "", false
}

func lastMarker(data []byte) (string, bool) {
	var found string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		matches := markerPattern.FindAllStringSubmatch(line, -1)
		if len(matches) == 0 {
			continue
		}
		found = strings.Trim(matches[len(matches)-1][1], `"'`)
	}
	return found, found != ""
}
