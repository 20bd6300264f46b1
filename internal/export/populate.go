package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"cointist/internal/logging"
	"cointist/internal/model"
	"cointist/internal/resolver"
	"cointist/internal/services"
	"cointist/internal/slugmap"
)

// Populator re-derives identifiers for a rejected batch. It must not modify
// items; results reach the gate through the slug map.
type Populator interface {
	Populate(ctx context.Context, items []model.Item) error
}

// CommandPopulator runs an external command that rewrites the slug map. The
// batch is written to its stdin as JSON.
type CommandPopulator struct {
	argv    []string
	env     []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewCommandPopulator parses a shell-quoted command line. The command sees
// COINTIST_SLUG_MAP plus any extra env entries.
func NewCommandPopulator(command string, slugMapPath string, env []string, timeout time.Duration, logger *slog.Logger) (*CommandPopulator, error) {
	argv, err := shellquote.Split(strings.TrimSpace(command))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "export", "parse populate command", command, err)
	}
	if len(argv) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "export", "parse populate command", "command is empty", nil)
	}
	environment := append([]string{"COINTIST_SLUG_MAP=" + slugMapPath}, env...)
	return &CommandPopulator{
		argv:    argv,
		env:     environment,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "export"),
	}, nil
}

// Populate runs the command and waits for it within the timeout.
func (p *CommandPopulator) Populate(ctx context.Context, items []model.Item) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	payload, err := json.Marshal(map[string]any{"items": items})
	if err != nil {
		return fmt.Errorf("encode populate input: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.argv[0], p.argv[1:]...) //nolint:gosec
	cmd.Env = append(os.Environ(), p.env...)
	cmd.Stdin = bytes.NewReader(payload)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return services.Wrap(services.ErrTimeout, "export", "populate", p.argv[0], ctx.Err())
		}
		return services.Wrap(services.ErrExternalTool, "export", "populate",
			strings.TrimSpace(string(output)), err)
	}
	p.logger.Debug("populate command finished",
		logging.String("command", p.argv[0]),
		logging.Int("output_bytes", len(output)))
	return nil
}

// ResolverPopulator runs resolution tiers in process and records every
// match in the slug map.
type ResolverPopulator struct {
	resolver *resolver.Resolver
	slugs    *slugmap.Map
}

// NewResolverPopulator wraps r. The gate normally restricts r to the
// directMap and logScan tiers.
func NewResolverPopulator(r *resolver.Resolver, slugs *slugmap.Map) *ResolverPopulator {
	return &ResolverPopulator{resolver: r, slugs: slugs}
}

// Populate resolves a copy of items and records slug to id pairs. Each entry
// keeps the item's slug as the old slug so patching by the original slug
// still finds it.
func (p *ResolverPopulator) Populate(ctx context.Context, items []model.Item) error {
	work := make([]model.Item, len(items))
	for i, item := range items {
		work[i] = item.Clone()
	}
	report, err := p.resolver.ResolveBatch(ctx, work)
	if err != nil {
		return err
	}
	entries := make([]slugmap.Entry, 0, len(report.Resolved))
	for i, item := range items {
		if item.Resolved() || !work[i].Resolved() {
			continue
		}
		slug := strings.TrimSpace(work[i].Slug)
		if slug == "" {
			continue
		}
		entry := slugmap.Entry{Slug: slug, ID: work[i].ID}
		if original := strings.TrimSpace(item.Slug); original != "" && original != slug {
			entry.OldSlug = original
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return nil
	}
	_, err = p.slugs.Record(ctx, entries...)
	return err
}
