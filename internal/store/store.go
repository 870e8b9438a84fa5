// Package store is the SQLite persistence layer: articles keyed by URL, the
// cluster taxonomy, the tracked-keyword registry and the append-only usage
// log. URL uniqueness is enforced here, which makes the storage layer the
// final backstop for the pipeline's non-transactional check-then-insert
// deduplication.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"newsradar/internal/core"
)

// ErrDuplicateArticle is returned by InsertArticle when the URL already
// exists. Callers count it as a duplicate skip, never as an error.
var ErrDuplicateArticle = errors.New("article already exists")

// Store wraps the SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if necessary) the database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "newsradar.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	articlesTable := `
	CREATE TABLE IF NOT EXISTS articles (
		url TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		source TEXT,
		summary TEXT,
		relevance_score REAL,
		matched_clusters TEXT,
		confidence_score REAL,
		rationale TEXT,
		keywords TEXT,
		analyzed INTEGER NOT NULL DEFAULT 0,
		is_competitor_covered INTEGER NOT NULL DEFAULT 0,
		published_at DATETIME,
		date_added DATETIME
	);`

	clustersTable := `
	CREATE TABLE IF NOT EXISTS clusters (
		id TEXT PRIMARY KEY,
		primary_theme TEXT NOT NULL,
		sub_theme TEXT,
		keywords TEXT,
		active INTEGER NOT NULL DEFAULT 1
	);`

	trackedKeywordsTable := `
	CREATE TABLE IF NOT EXISTS tracked_keywords (
		id TEXT PRIMARY KEY,
		keyword TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'active',
		article_count INTEGER NOT NULL DEFAULT 0,
		last_matched DATETIME
	);`

	usageLogTable := `
	CREATE TABLE IF NOT EXISTS usage_log (
		id TEXT PRIMARY KEY,
		model TEXT,
		prompt_tokens INTEGER,
		output_tokens INTEGER,
		estimated_cost REAL,
		duration_ms INTEGER,
		status TEXT,
		error_message TEXT,
		metadata TEXT,
		created_at DATETIME
	);`

	tables := []string{articlesTable, clustersTable, trackedKeywordsTable, usageLogTable}
	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// HasArticle reports whether an article with this URL is already stored.
func (s *Store) HasArticle(ctx context.Context, url string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM articles WHERE url = ?", url).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check article existence: %w", err)
	}
	return true, nil
}

// InsertArticle stores a new article. A URL collision surfaces as
// ErrDuplicateArticle via the primary-key constraint.
func (s *Store) InsertArticle(ctx context.Context, article core.Article) error {
	clusters, _ := json.Marshal(article.MatchedClusters)
	kws, _ := json.Marshal(article.Keywords)

	query := `
	INSERT INTO articles
	(url, title, source, summary, relevance_score, matched_clusters, confidence_score,
	 rationale, keywords, analyzed, is_competitor_covered, published_at, date_added)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		article.URL,
		article.Title,
		article.Source,
		article.Summary,
		article.RelevanceScore,
		string(clusters),
		article.ConfidenceScore,
		article.Rationale,
		string(kws),
		article.Analyzed,
		article.IsCompetitorCovered,
		article.PublishedAt,
		article.DateAdded,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateArticle
		}
		return fmt.Errorf("failed to insert article: %w", err)
	}

	return nil
}

// isDuplicateKey reports whether err is a key collision. Only the primary-key
// and unique constraint classes count; other constraint violations (NOT NULL
// etc.) are real storage failures, not duplicates.
func isDuplicateKey(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// ListUnanalyzedArticles returns up to limit articles that have not had an
// analysis pass yet, oldest first so the backlog drains in insertion order.
func (s *Store) ListUnanalyzedArticles(ctx context.Context, limit int) ([]core.Article, error) {
	query := `
	SELECT url, title, source, summary, relevance_score, matched_clusters, confidence_score,
	       rationale, keywords, analyzed, is_competitor_covered, published_at, date_added
	FROM articles
	WHERE analyzed = 0
	ORDER BY date_added ASC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unanalyzed articles: %w", err)
	}
	defer rows.Close()

	var articles []core.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

// GetArticle fetches one article by URL, or nil when absent.
func (s *Store) GetArticle(ctx context.Context, url string) (*core.Article, error) {
	query := `
	SELECT url, title, source, summary, relevance_score, matched_clusters, confidence_score,
	       rationale, keywords, analyzed, is_competitor_covered, published_at, date_added
	FROM articles WHERE url = ?`

	row := s.db.QueryRowContext(ctx, query, url)
	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// SaveClassification writes an analysis result onto the article, superseding
// any previous result.
func (s *Store) SaveClassification(ctx context.Context, url string, result core.ClassificationResult, keywords []string) error {
	clusters, _ := json.Marshal(result.MatchedClusters)
	kws, _ := json.Marshal(keywords)

	query := `
	UPDATE articles
	SET matched_clusters = ?, confidence_score = ?, rationale = ?, keywords = ?, analyzed = 1
	WHERE url = ?`

	res, err := s.db.ExecContext(ctx, query, string(clusters), result.ConfidenceScore, result.Rationale, string(kws), url)
	if err != nil {
		return fmt.Errorf("failed to save classification: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no article with url %s", url)
	}
	return nil
}

// ListActiveClusters returns the active taxonomy snapshot.
func (s *Store) ListActiveClusters(ctx context.Context) ([]core.Cluster, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, primary_theme, sub_theme, keywords, active FROM clusters WHERE active = 1 ORDER BY primary_theme, sub_theme")
	if err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}
	defer rows.Close()

	var clusters []core.Cluster
	for rows.Next() {
		var cluster core.Cluster
		var keywordsJSON string
		if err := rows.Scan(&cluster.ID, &cluster.PrimaryTheme, &cluster.SubTheme, &keywordsJSON, &cluster.Active); err != nil {
			return nil, fmt.Errorf("failed to scan cluster: %w", err)
		}
		_ = json.Unmarshal([]byte(keywordsJSON), &cluster.Keywords)
		clusters = append(clusters, cluster)
	}
	return clusters, rows.Err()
}

// SaveCluster inserts or replaces one taxonomy entry.
func (s *Store) SaveCluster(ctx context.Context, cluster core.Cluster) error {
	if cluster.ID == "" {
		cluster.ID = uuid.NewString()
	}
	keywordsJSON, _ := json.Marshal(cluster.Keywords)

	query := `
	INSERT OR REPLACE INTO clusters (id, primary_theme, sub_theme, keywords, active)
	VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query, cluster.ID, cluster.PrimaryTheme, cluster.SubTheme, string(keywordsJSON), cluster.Active)
	if err != nil {
		return fmt.Errorf("failed to save cluster: %w", err)
	}
	return nil
}

// ListActiveTrackedKeywords returns the active tracked-keyword snapshot.
func (s *Store) ListActiveTrackedKeywords(ctx context.Context) ([]core.TrackedKeyword, error) {
	return s.listTrackedKeywords(ctx, true)
}

// ListTrackedKeywords returns every tracked keyword regardless of status.
func (s *Store) ListTrackedKeywords(ctx context.Context) ([]core.TrackedKeyword, error) {
	return s.listTrackedKeywords(ctx, false)
}

func (s *Store) listTrackedKeywords(ctx context.Context, activeOnly bool) ([]core.TrackedKeyword, error) {
	query := "SELECT id, keyword, status, article_count, last_matched FROM tracked_keywords"
	if activeOnly {
		query += " WHERE status = 'active'"
	}
	query += " ORDER BY keyword"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked keywords: %w", err)
	}
	defer rows.Close()

	var entries []core.TrackedKeyword
	for rows.Next() {
		var entry core.TrackedKeyword
		var lastMatched sql.NullTime
		if err := rows.Scan(&entry.ID, &entry.Keyword, &entry.Status, &entry.ArticleCount, &lastMatched); err != nil {
			return nil, fmt.Errorf("failed to scan tracked keyword: %w", err)
		}
		if lastMatched.Valid {
			entry.LastMatched = lastMatched.Time
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SaveTrackedKeyword inserts or updates a registry entry.
func (s *Store) SaveTrackedKeyword(ctx context.Context, entry core.TrackedKeyword) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Status == "" {
		entry.Status = core.KeywordStatusActive
	}

	query := `
	INSERT INTO tracked_keywords (id, keyword, status, article_count, last_matched)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(keyword) DO UPDATE SET status = excluded.status`

	_, err := s.db.ExecContext(ctx, query, entry.ID, entry.Keyword, entry.Status, entry.ArticleCount, entry.LastMatched)
	if err != nil {
		return fmt.Errorf("failed to save tracked keyword: %w", err)
	}
	return nil
}

// IncrementKeywordCount bumps one tracked keyword's article counter and
// stamps the match date. A single-row atomic update; the caller guarantees
// at-most-one call per keyword per analyzed item.
func (s *Store) IncrementKeywordCount(ctx context.Context, keywordID string) error {
	query := `
	UPDATE tracked_keywords
	SET article_count = article_count + 1, last_matched = ?
	WHERE id = ?`

	res, err := s.db.ExecContext(ctx, query, time.Now().UTC(), keywordID)
	if err != nil {
		return fmt.Errorf("failed to increment keyword count: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no tracked keyword with id %s", keywordID)
	}
	return nil
}

// RecordUsage appends one telemetry entry. Usage rows are never updated.
func (s *Store) RecordUsage(ctx context.Context, record core.UsageRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	metadata, _ := json.Marshal(record.Metadata)

	query := `
	INSERT INTO usage_log
	(id, model, prompt_tokens, output_tokens, estimated_cost, duration_ms, status, error_message, metadata, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.Model,
		record.PromptTokens,
		record.OutputTokens,
		record.EstimatedCost,
		record.Duration.Milliseconds(),
		record.Status,
		record.ErrorMessage,
		string(metadata),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// Stats summarizes the store's contents for the stats command.
type Stats struct {
	ArticleCount    int
	UnanalyzedCount int
	ClusterCount    int
	KeywordCount    int
	UsageCallCount  int
	TotalCost       float64
	DatabaseSize    int64
}

// GetStats returns aggregate counts across all tables.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	counts := map[string]*int{
		"SELECT COUNT(*) FROM articles":                  &stats.ArticleCount,
		"SELECT COUNT(*) FROM articles WHERE analyzed=0": &stats.UnanalyzedCount,
		"SELECT COUNT(*) FROM clusters WHERE active=1":   &stats.ClusterCount,
		"SELECT COUNT(*) FROM tracked_keywords":          &stats.KeywordCount,
		"SELECT COUNT(*) FROM usage_log":                 &stats.UsageCallCount,
	}
	for query, target := range counts {
		if err := s.db.QueryRowContext(ctx, query).Scan(target); err != nil {
			return nil, fmt.Errorf("failed to get count: %w", err)
		}
	}

	var cost sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, "SELECT SUM(estimated_cost) FROM usage_log").Scan(&cost); err == nil && cost.Valid {
		stats.TotalCost = cost.Float64
	}

	if fileInfo, err := os.Stat(s.path); err == nil {
		stats.DatabaseSize = fileInfo.Size()
	}

	return stats, nil
}

// rowScanner lets scanArticle serve both QueryRow and Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (core.Article, error) {
	var article core.Article
	var clustersJSON, keywordsJSON string
	var publishedAt, dateAdded sql.NullTime

	err := row.Scan(
		&article.URL,
		&article.Title,
		&article.Source,
		&article.Summary,
		&article.RelevanceScore,
		&clustersJSON,
		&article.ConfidenceScore,
		&article.Rationale,
		&keywordsJSON,
		&article.Analyzed,
		&article.IsCompetitorCovered,
		&publishedAt,
		&dateAdded,
	)
	if err == sql.ErrNoRows {
		return article, err
	}
	if err != nil {
		return article, fmt.Errorf("failed to scan article: %w", err)
	}

	_ = json.Unmarshal([]byte(clustersJSON), &article.MatchedClusters)
	_ = json.Unmarshal([]byte(keywordsJSON), &article.Keywords)
	if publishedAt.Valid {
		article.PublishedAt = publishedAt.Time
	}
	if dateAdded.Valid {
		article.DateAdded = dateAdded.Time
	}
	return article, nil
}
