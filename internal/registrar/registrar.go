package registrar

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"cointist/internal/artifacts"
	"cointist/internal/dispatch"
	"cointist/internal/fileutil"
	"cointist/internal/logging"
	"cointist/internal/model"
	"cointist/internal/services"
	"cointist/internal/snapshot"
	"cointist/internal/textutil"
)

// ArtifactStore is the artifact store with filesystem paths, needed to tell
// workers where to write.
type ArtifactStore interface {
	artifacts.Store
	Path(name string) string
}

// Options configures a Registrar.
type Options struct {
	SnapshotFile string
	WorkerLogDir string
	Store        ArtifactStore
	Launcher     dispatch.Launcher
	Logger       *slog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
	// NewToken overrides token generation in tests.
	NewToken func() string
}

// Registrar registers runs.
type Registrar struct {
	snapshotFile string
	workerLogDir string
	store        ArtifactStore
	launcher     dispatch.Launcher
	logger       *slog.Logger
	now          func() time.Time
	newToken     func() string
}

// ItemResult reports what happened to one selected item.
type ItemResult struct {
	Key        string   `json:"key"`
	Slug       string   `json:"slug"`
	ID         model.ID `json:"id,omitzero"`
	PID        int      `json:"pid,omitempty"`
	LogPath    string   `json:"logPath,omitempty"`
	OutputPath string   `json:"outputPath,omitempty"`
	Dispatched bool     `json:"dispatched"`
	Error      string   `json:"error,omitempty"`
}

// Registration is the response to a successful registration.
type Registration struct {
	Token          string       `json:"token"`
	StartedAt      time.Time    `json:"startedAt"`
	ManifestPath   string       `json:"manifestPath"`
	InvocationPath string       `json:"invocationPath"`
	Items          []ItemResult `json:"items"`
}

// Dispatched counts items whose worker started.
func (r Registration) Dispatched() int {
	n := 0
	for _, item := range r.Items {
		if item.Dispatched {
			n++
		}
	}
	return n
}

// New constructs a Registrar.
func New(opts Options) *Registrar {
	r := &Registrar{
		snapshotFile: opts.SnapshotFile,
		workerLogDir: opts.WorkerLogDir,
		store:        opts.Store,
		launcher:     opts.Launcher,
		logger:       logging.NewComponentLogger(opts.Logger, "registrar"),
		now:          opts.Now,
		newToken:     opts.NewToken,
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.newToken == nil {
		r.newToken = uuid.NewString
	}
	return r
}

// Register validates keys against the snapshot, writes the selection manifest
// and invocation record, and dispatches workers. Individual launch failures
// are recorded on the matching item and do not fail the registration.
func (r *Registrar) Register(ctx context.Context, keys []string) (Registration, error) {
	snap, err := snapshot.Load(r.snapshotFile)
	if err != nil {
		return Registration{}, services.Wrap(services.ErrConfiguration, "registrar", "load snapshot", "snapshot unreadable", err)
	}

	matches, unmatched := snap.Select(keys)
	if len(matches) == 0 {
		return Registration{}, services.Wrap(services.ErrNotFound, "registrar", "select",
			fmt.Sprintf("no snapshot items match %d requested keys", len(keys)), nil)
	}
	if missing := missingLocators(matches); len(missing) > 0 {
		return Registration{}, services.Wrap(services.ErrValidation, "registrar", "select",
			"items without a fetchable url: "+strings.Join(missing, ", "), nil)
	}

	started := r.now()
	token := r.newToken()
	ctx = services.WithRunToken(ctx, token)
	logger := logging.WithContext(ctx, r.logger)
	if len(unmatched) > 0 {
		logger.Info("ignoring keys without snapshot match", logging.Any("keys", unmatched))
	}

	items := make([]model.Item, len(matches))
	selected := make([]string, len(matches))
	for i, m := range matches {
		item := m.Item
		item.Slug = textutil.DeriveSlug(item.Slug, item.Locator(), item.Title, m.Key)
		items[i] = item
		selected[i] = m.Key
	}

	manifestName := artifacts.Format(artifacts.KindSelection, started, "", "json")
	if err := r.writeJSON(ctx, manifestName, model.Manifest{CreatedAt: started, Keys: selected, Items: items}); err != nil {
		return Registration{}, services.Wrap(services.ErrTransient, "registrar", "write manifest", manifestName, err)
	}

	results := make([]ItemResult, len(items))
	workers := make([]model.WorkerRecord, len(items))
	seen := make(map[string]int, len(items))
	for i, item := range items {
		fileSlug := item.Slug
		if n := seen[item.Slug]; n > 0 {
			fileSlug = fmt.Sprintf("%s-%d", item.Slug, n+1)
		}
		seen[item.Slug]++
		results[i], workers[i] = r.dispatch(ctx, started, token, selected[i], fileSlug, item)
	}

	invocationName := artifacts.Format(artifacts.KindInvocation, started, token, "json")
	invocation := model.Invocation{Token: token, StartedAt: started, Items: items, Workers: workers}
	if err := r.writeJSON(ctx, invocationName, invocation); err != nil {
		return Registration{}, services.Wrap(services.ErrTransient, "registrar", "write invocation", invocationName, err)
	}

	reg := Registration{
		Token:          token,
		StartedAt:      started,
		ManifestPath:   r.store.Path(manifestName),
		InvocationPath: r.store.Path(invocationName),
		Items:          results,
	}
	logger.Info("run registered",
		logging.Int("items", len(results)),
		logging.Int("dispatched", reg.Dispatched()),
		logging.String("invocation", reg.InvocationPath),
	)
	return reg, nil
}

func (r *Registrar) dispatch(ctx context.Context, started time.Time, token, key, fileSlug string, item model.Item) (ItemResult, model.WorkerRecord) {
	outputName := artifacts.Format(artifacts.KindSummary, started, fileSlug, "json")
	logName := artifacts.Format(artifacts.KindWorker, started, fileSlug, "log")
	spec := dispatch.Spec{
		Slug:       item.Slug,
		Locator:    item.Locator(),
		OutputPath: r.store.Path(outputName),
		LogPath:    filepath.Join(r.workerLogDir, logName),
		Token:      token,
	}
	result := ItemResult{Key: key, Slug: item.Slug, ID: item.ID, OutputPath: spec.OutputPath}
	record := model.WorkerRecord{Slug: item.Slug, OutputPath: spec.OutputPath}

	if r.launcher == nil {
		result.Error = "no worker launcher configured"
		record.Error = result.Error
		return result, record
	}

	logger := logging.WithContext(services.WithItemSlug(ctx, item.Slug), r.logger)
	handle, err := r.launcher.Launch(ctx, spec)
	if err != nil {
		logging.WarnWithContext(logger, "worker launch failed", "worker_launch_failed",
			logging.Error(err),
			logging.String("url", spec.Locator),
			logging.String(logging.FieldErrorHint, "check worker.command and the worker log"),
			logging.String(logging.FieldImpact, "run will produce fewer summaries"),
		)
		result.Error = err.Error()
		result.LogPath = spec.LogPath
		record.Error = result.Error
		record.LogPath = spec.LogPath
		return result, record
	}

	logger.Info("worker dispatched", logging.Int("pid", handle.PID), logging.String("log_path", handle.LogPath))
	result.PID = handle.PID
	result.LogPath = handle.LogPath
	result.Dispatched = true
	record.PID = handle.PID
	record.LogPath = handle.LogPath
	record.Dispatched = true
	return result, record
}

func (r *Registrar) writeJSON(ctx context.Context, name string, v any) error {
	data, err := fileutil.MarshalIndented(v)
	if err != nil {
		return err
	}
	return r.store.Write(ctx, name, data)
}

func missingLocators(matches []snapshot.Match) []string {
	var missing []string
	for _, m := range matches {
		if m.Item.Locator() == "" {
			missing = append(missing, m.Key)
		}
	}
	return missing
}

// LoadInvocation finds the invocation record for token.
func LoadInvocation(ctx context.Context, store artifacts.Store, token string) (model.Invocation, string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.Invocation{}, "", services.Wrap(services.ErrValidation, "registrar", "load invocation", "token is required", nil)
	}
	entries, err := store.List(ctx, artifacts.KindInvocation+"-")
	if err != nil {
		return model.Invocation{}, "", services.Wrap(services.ErrNotFound, "registrar", "load invocation", "artifact store unavailable", err)
	}
	suffix := textutil.SanitizeToken(token)
	for _, entry := range entries {
		if !entry.Named || entry.Parsed.Suffix != suffix {
			continue
		}
		data, err := store.Read(ctx, entry.Name)
		if err != nil {
			return model.Invocation{}, "", err
		}
		inv, err := model.ParseInvocation(data)
		if err != nil {
			return model.Invocation{}, "", services.Wrap(services.ErrValidation, "registrar", "load invocation", entry.Name, err)
		}
		return inv, entry.Name, nil
	}
	return model.Invocation{}, "", services.Wrap(services.ErrNotFound, "registrar", "load invocation", "no invocation for token "+token, nil)
}
