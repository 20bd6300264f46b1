package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"cointist/internal/textutil"
)

//go:embed schema_sqlite.sql
var sqliteSchemaSQL string

// schemaVersion is the current schema version for both backends. Bump this
// when either schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	sqliteArticleColumns    = "id, slug, COALESCE(old_slug, ''), title, excerpt, updated_at"
	// Fixed width keeps text ordering chronological.
	sqliteTimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// SQLite is a Directory backed by a local SQLite database.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the catalog database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("catalog: sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLite{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s and re-import)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *SQLite) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, sqliteSchemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// ByID looks up an article by identifier.
func (s *SQLite) ByID(ctx context.Context, id int64) (Article, bool, error) {
	if id <= 0 {
		return Article{}, false, nil
	}
	return s.queryOne(ctx, "SELECT "+sqliteArticleColumns+" FROM articles WHERE id = ?", id)
}

// BySlug looks up an article by current slug, then by previous slug.
func (s *SQLite) BySlug(ctx context.Context, slug string) (Article, bool, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Article{}, false, nil
	}
	return s.queryOne(ctx,
		"SELECT "+sqliteArticleColumns+` FROM articles
        WHERE slug = ? OR old_slug = ?
        ORDER BY CASE WHEN slug = ? THEN 0 ELSE 1 END, updated_at DESC
        LIMIT 1`,
		slug, slug, slug)
}

// ByTitle looks up an article by exact title, ignoring ASCII case.
func (s *SQLite) ByTitle(ctx context.Context, title string) (Article, bool, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Article{}, false, nil
	}
	return s.queryOne(ctx,
		"SELECT "+sqliteArticleColumns+` FROM articles
        WHERE title = ? COLLATE NOCASE
        ORDER BY updated_at DESC
        LIMIT 1`,
		title)
}

// SearchTitle prefilters by title tokens in SQL and ranks candidates by overlap.
func (s *SQLite) SearchTitle(ctx context.Context, query string, policy textutil.MatchPolicy, limit int) ([]Match, error) {
	tokens := searchTokens(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	clauses := make([]string, 0, len(tokens))
	args := make([]any, 0, len(tokens)+1)
	for _, token := range tokens {
		clauses = append(clauses, `title LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(token))
	}
	args = append(args, searchCandidateLimit)
	candidates, err := s.queryMany(ctx,
		"SELECT "+sqliteArticleColumns+" FROM articles WHERE "+strings.Join(clauses, " OR ")+
			" ORDER BY updated_at DESC LIMIT ?",
		args...)
	if err != nil {
		return nil, err
	}
	return rankByTitle(query, candidates, policy, limit), nil
}

// Upsert inserts or updates an article.
func (s *SQLite) Upsert(ctx context.Context, article Article) (Article, error) {
	article, err := normalizeArticle(article)
	if err != nil {
		return Article{}, err
	}
	stamp := article.UpdatedAt.UTC().Format(sqliteTimestampLayout)

	var query string
	var args []any
	if article.ID == 0 {
		query = `INSERT INTO articles (slug, old_slug, title, excerpt, updated_at)
            VALUES (?, ?, ?, ?, ?)
            ON CONFLICT(slug) DO UPDATE SET
                title = CASE WHEN excluded.title <> '' THEN excluded.title ELSE articles.title END,
                excerpt = CASE WHEN excluded.excerpt <> '' THEN excluded.excerpt ELSE articles.excerpt END,
                old_slug = COALESCE(excluded.old_slug, articles.old_slug),
                updated_at = excluded.updated_at
            RETURNING ` + sqliteArticleColumns
		args = []any{article.Slug, nullableString(article.OldSlug), article.Title, article.Excerpt, stamp}
	} else {
		query = `INSERT INTO articles (id, slug, old_slug, title, excerpt, updated_at)
            VALUES (?, ?, ?, ?, ?, ?)
            ON CONFLICT(id) DO UPDATE SET
                old_slug = CASE WHEN articles.slug <> excluded.slug THEN articles.slug
                    ELSE COALESCE(excluded.old_slug, articles.old_slug) END,
                slug = excluded.slug,
                title = CASE WHEN excluded.title <> '' THEN excluded.title ELSE articles.title END,
                excerpt = CASE WHEN excluded.excerpt <> '' THEN excluded.excerpt ELSE articles.excerpt END,
                updated_at = excluded.updated_at
            RETURNING ` + sqliteArticleColumns
		args = []any{article.ID, article.Slug, nullableString(article.OldSlug), article.Title, article.Excerpt, stamp}
	}

	var saved Article
	err = retryOnBusy(ctx, func() error {
		var scanErr error
		saved, scanErr = scanSQLiteArticle(s.db.QueryRowContext(ctx, query, args...))
		return scanErr
	})
	if err != nil {
		return Article{}, fmt.Errorf("upsert article %q: %w", article.Slug, err)
	}
	return saved, nil
}

// Count returns the number of stored articles.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&count); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return count, nil
}

func (s *SQLite) queryOne(ctx context.Context, query string, args ...any) (Article, bool, error) {
	var (
		article Article
		found   bool
	)
	err := retryOnBusy(ctx, func() error {
		var scanErr error
		article, scanErr = scanSQLiteArticle(s.db.QueryRowContext(ctx, query, args...))
		if errors.Is(scanErr, sql.ErrNoRows) {
			found = false
			return nil
		}
		found = scanErr == nil
		return scanErr
	})
	if err != nil {
		return Article{}, false, fmt.Errorf("query article: %w", err)
	}
	return article, found, nil
}

func (s *SQLite) queryMany(ctx context.Context, query string, args ...any) ([]Article, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		article, err := scanSQLiteArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteArticle(row rowScanner) (Article, error) {
	var (
		article Article
		updated string
	)
	if err := row.Scan(&article.ID, &article.Slug, &article.OldSlug, &article.Title, &article.Excerpt, &updated); err != nil {
		return Article{}, err
	}
	if updated != "" {
		parsed, err := time.Parse(sqliteTimestampLayout, updated)
		if err != nil {
			return Article{}, fmt.Errorf("parse updated_at %q: %w", updated, err)
		}
		article.UpdatedAt = parsed
	}
	return article, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
