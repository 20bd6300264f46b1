package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cointist/internal/textutil"
)

//go:embed schema_postgres.sql
var postgresSchemaSQL string

const postgresArticleColumns = "id, slug, COALESCE(old_slug, ''), title, excerpt, updated_at"

// Postgres is a Directory backed by a PostgreSQL connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and prepares the schema.
func OpenPostgres(ctx context.Context, dsn string, maxConns int) (*Postgres, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("catalog: postgres dsn is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 2
	}
	cfg.MaxConns = int32(maxConns)
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := &Postgres{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func (p *Postgres) initSchema(ctx context.Context) error {
	var exists bool
	if err := p.pool.QueryRow(ctx, "SELECT to_regclass('schema_version') IS NOT NULL").Scan(&exists); err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if !exists {
		tx, err := p.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()
		if _, err := tx.Exec(ctx, postgresSchemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_version (version) VALUES ($1)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit schema: %w", err)
		}
		return nil
	}
	var version int
	if err := p.pool.QueryRow(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

// ByID looks up an article by identifier.
func (p *Postgres) ByID(ctx context.Context, id int64) (Article, bool, error) {
	if id <= 0 {
		return Article{}, false, nil
	}
	return p.queryOne(ctx, "SELECT "+postgresArticleColumns+" FROM articles WHERE id = $1", id)
}

// BySlug looks up an article by current slug, then by previous slug.
func (p *Postgres) BySlug(ctx context.Context, slug string) (Article, bool, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Article{}, false, nil
	}
	return p.queryOne(ctx,
		"SELECT "+postgresArticleColumns+` FROM articles
        WHERE slug = $1 OR old_slug = $1
        ORDER BY (slug = $1) DESC, updated_at DESC
        LIMIT 1`,
		slug)
}

// ByTitle looks up an article by exact title, ignoring case.
func (p *Postgres) ByTitle(ctx context.Context, title string) (Article, bool, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Article{}, false, nil
	}
	return p.queryOne(ctx,
		"SELECT "+postgresArticleColumns+` FROM articles
        WHERE lower(title) = lower($1)
        ORDER BY updated_at DESC
        LIMIT 1`,
		title)
}

// SearchTitle prefilters by title tokens in SQL and ranks candidates by overlap.
func (p *Postgres) SearchTitle(ctx context.Context, query string, policy textutil.MatchPolicy, limit int) ([]Match, error) {
	tokens := searchTokens(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	patterns := make([]string, 0, len(tokens))
	for _, token := range tokens {
		patterns = append(patterns, likePattern(token))
	}
	rows, err := p.pool.Query(ctx,
		"SELECT "+postgresArticleColumns+` FROM articles
        WHERE title ILIKE ANY($1)
        ORDER BY updated_at DESC
        LIMIT $2`,
		patterns, searchCandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var candidates []Article
	for rows.Next() {
		article, err := scanPostgresArticle(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return rankByTitle(query, candidates, policy, limit), nil
}

// Upsert inserts or updates an article.
func (p *Postgres) Upsert(ctx context.Context, article Article) (Article, error) {
	article, err := normalizeArticle(article)
	if err != nil {
		return Article{}, err
	}
	var row pgx.Row
	if article.ID == 0 {
		row = p.pool.QueryRow(ctx, `INSERT INTO articles (slug, old_slug, title, excerpt, updated_at)
            VALUES ($1, $2, $3, $4, $5)
            ON CONFLICT (slug) DO UPDATE SET
                title = CASE WHEN excluded.title <> '' THEN excluded.title ELSE articles.title END,
                excerpt = CASE WHEN excluded.excerpt <> '' THEN excluded.excerpt ELSE articles.excerpt END,
                old_slug = COALESCE(excluded.old_slug, articles.old_slug),
                updated_at = excluded.updated_at
            RETURNING `+postgresArticleColumns,
			article.Slug, nullableString(article.OldSlug), article.Title, article.Excerpt, article.UpdatedAt.UTC())
	} else {
		row = p.pool.QueryRow(ctx, `INSERT INTO articles (id, slug, old_slug, title, excerpt, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6)
            ON CONFLICT (id) DO UPDATE SET
                old_slug = CASE WHEN articles.slug <> excluded.slug THEN articles.slug
                    ELSE COALESCE(excluded.old_slug, articles.old_slug) END,
                slug = excluded.slug,
                title = CASE WHEN excluded.title <> '' THEN excluded.title ELSE articles.title END,
                excerpt = CASE WHEN excluded.excerpt <> '' THEN excluded.excerpt ELSE articles.excerpt END,
                updated_at = excluded.updated_at
            RETURNING `+postgresArticleColumns,
			article.ID, article.Slug, nullableString(article.OldSlug), article.Title, article.Excerpt, article.UpdatedAt.UTC())
	}
	saved, err := scanPostgresArticle(row)
	if err != nil {
		return Article{}, fmt.Errorf("upsert article %q: %w", article.Slug, err)
	}
	return saved, nil
}

// Count returns the number of stored articles.
func (p *Postgres) Count(ctx context.Context) (int, error) {
	var count int
	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM articles").Scan(&count); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return count, nil
}

func (p *Postgres) queryOne(ctx context.Context, query string, args ...any) (Article, bool, error) {
	article, err := scanPostgresArticle(p.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Article{}, false, nil
	}
	if err != nil {
		return Article{}, false, fmt.Errorf("query article: %w", err)
	}
	return article, true, nil
}

func scanPostgresArticle(row pgx.Row) (Article, error) {
	var article Article
	if err := row.Scan(&article.ID, &article.Slug, &article.OldSlug, &article.Title, &article.Excerpt, &article.UpdatedAt); err != nil {
		return Article{}, err
	}
	return article, nil
}
