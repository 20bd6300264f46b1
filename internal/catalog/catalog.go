package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"cointist/internal/config"
	"cointist/internal/textutil"
)

// Article is a persisted item.
type Article struct {
	ID        int64     `json:"id"`
	Slug      string    `json:"slug"`
	OldSlug   string    `json:"oldSlug,omitempty"`
	Title     string    `json:"title"`
	Excerpt   string    `json:"excerpt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Match is a fuzzy title search hit.
type Match struct {
	Article Article        `json:"article"`
	Score   textutil.Score `json:"score"`
}

// Directory queries and maintains the persistent store.
type Directory interface {
	ByID(ctx context.Context, id int64) (Article, bool, error)
	// BySlug matches the current slug first, then a previous slug.
	BySlug(ctx context.Context, slug string) (Article, bool, error)
	// ByTitle matches a title exactly, ignoring case and surrounding space.
	ByTitle(ctx context.Context, title string) (Article, bool, error)
	// SearchTitle returns articles whose titles pass policy against query,
	// best first.
	SearchTitle(ctx context.Context, query string, policy textutil.MatchPolicy, limit int) ([]Match, error)
	// Upsert inserts or updates by id. A zero id lets the store assign one.
	// A changed slug moves the previous slug to OldSlug.
	Upsert(ctx context.Context, article Article) (Article, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg config.Store) (Directory, error) {
	switch cfg.Driver {
	case config.StoreDriverSQLite, "":
		db, err := OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.StoreDriverPostgres:
		db, err := OpenPostgres(ctx, cfg.DSN, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("catalog: unsupported driver %q", cfg.Driver)
	}
}

const (
	searchCandidateLimit = 200
	searchTokenLimit     = 6
)

// searchTokens picks the longest query tokens to prefilter candidates in SQL.
func searchTokens(query string) []string {
	tokens := textutil.Tokenize(query)
	seen := make(map[string]struct{}, len(tokens))
	unique := tokens[:0]
	for _, token := range tokens {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		unique = append(unique, token)
	}
	sort.SliceStable(unique, func(i, j int) bool { return len(unique[i]) > len(unique[j]) })
	if len(unique) > searchTokenLimit {
		unique = unique[:searchTokenLimit]
	}
	return unique
}

func rankByTitle(query string, candidates []Article, policy textutil.MatchPolicy, limit int) []Match {
	target := textutil.NewTokenSet(query)
	matches := make([]Match, 0, len(candidates))
	for _, article := range candidates {
		score := textutil.ScoreSets(target, textutil.NewTokenSet(article.Title))
		if !policy.Accept(score) {
			continue
		}
		matches = append(matches, Match{Article: article, Score: score})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return textutil.Better(matches[i].Score, matches[j].Score)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func likePattern(token string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(token)
	return "%" + escaped + "%"
}

func normalizeArticle(a Article) (Article, error) {
	a.Slug = strings.TrimSpace(a.Slug)
	a.OldSlug = strings.TrimSpace(a.OldSlug)
	a.Title = strings.TrimSpace(a.Title)
	if a.Slug == "" {
		return a, fmt.Errorf("catalog: article slug is required")
	}
	if a.ID < 0 {
		return a, fmt.Errorf("catalog: negative article id %d", a.ID)
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now().UTC()
	}
	return a, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
