package artifacts

import (
	"context"
	"log/slog"
	"os"
	"time"

	"cointist/internal/logging"
)

// PruneResult contains the outcome of an artifact cleanup.
type PruneResult struct {
	Removed []string
	Errors  []PruneError
}

// PruneError pairs an artifact path with its removal error.
type PruneError struct {
	Path  string
	Error error
}

// Prune removes artifacts in d whose stamp is older than maxAge. When kinds is
// non-empty only artifacts with one of those prefixes are considered. A
// missing directory is not an error.
func Prune(ctx context.Context, d *Dir, maxAge time.Duration, kinds []string, logger *slog.Logger) PruneResult {
	result := PruneResult{}
	if d == nil || d.root == "" || maxAge <= 0 {
		return result
	}

	entries, err := d.List(ctx, "")
	if err != nil {
		if !IsNotExist(err) {
			result.Errors = append(result.Errors, PruneError{Path: d.root, Error: err})
		}
		return result
	}

	allowed := make(map[string]struct{}, len(kinds))
	for _, kind := range kinds {
		allowed[kind] = struct{}{}
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if len(allowed) > 0 {
			if _, ok := allowed[entry.Parsed.Kind]; !ok || !entry.Named {
				continue
			}
		}
		if !entry.Stamp().Before(cutoff) {
			continue
		}
		path := d.Path(entry.Name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			result.Errors = append(result.Errors, PruneError{Path: path, Error: err})
			if logger != nil {
				logger.Warn("failed to remove stale artifact",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "artifact_prune_failed"),
					logging.String(logging.FieldErrorHint, "check artifact_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, path)
		if logger != nil {
			logger.Info("removed stale artifact",
				logging.String("path", path),
				logging.Duration("age", time.Since(entry.Stamp())),
				logging.String(logging.FieldEventType, "artifact_prune"),
			)
		}
	}
	return result
}
