package core

import "time"

// CandidateArticle is a transient, unvalidated record produced by parsing the
// text returned from a discovery call. It only becomes an Article once it
// survives validation, filtering and the deduplication gate.
type CandidateArticle struct {
	Title               string    `json:"title"`                 // Title of the article (required downstream)
	URL                 string    `json:"url"`                   // The URL, used as the unique key
	Source              string    `json:"source"`                // Publisher name, derived from the URL host when absent
	Summary             string    `json:"summary"`               // Short summary (optional)
	RelevanceScore      float64   `json:"relevance_score"`       // Relevance score 0.0-1.0 (0 when unscored)
	Scored              bool      `json:"scored"`                // Whether the upstream response carried a score at all
	MatchedClusters     []string  `json:"matched_clusters"`      // Cluster labels assigned at ingestion (may be empty)
	IsCompetitorCovered bool      `json:"is_competitor_covered"` // Whether a competitor already covers this story
	PublishedAt         time.Time `json:"published_at"`          // Publication date, defaults to ingestion time
}

// Article is a persisted news record, keyed by URL. The storage layer
// enforces URL uniqueness; the pipeline only reads (dedup) and inserts.
type Article struct {
	URL                 string    `json:"url"`
	Title               string    `json:"title"`
	Source              string    `json:"source"`
	Summary             string    `json:"summary"`
	RelevanceScore      float64   `json:"relevance_score"`
	MatchedClusters     []string  `json:"matched_clusters"`
	ConfidenceScore     float64   `json:"confidence_score"`
	Rationale           string    `json:"rationale"`
	Keywords            []string  `json:"keywords"` // Free-text keywords extracted during analysis
	Analyzed            bool      `json:"analyzed"` // Whether an analysis pass has been attempted
	IsCompetitorCovered bool      `json:"is_competitor_covered"`
	PublishedAt         time.Time `json:"published_at"`
	DateAdded           time.Time `json:"date_added"`
}

// Cluster is one entry of the classification taxonomy: a primary theme, a
// sub-theme and the keywords that signal it. The taxonomy may change between
// runs but a run always operates on a single snapshot.
type Cluster struct {
	ID           string   `json:"id"`
	PrimaryTheme string   `json:"primary_theme"`
	SubTheme     string   `json:"sub_theme"`
	Keywords     []string `json:"keywords"`
	Active       bool     `json:"active"`
}

// Label returns the "Primary: Sub" label used on classified articles.
func (c Cluster) Label() string {
	if c.SubTheme == "" {
		return c.PrimaryTheme
	}
	return c.PrimaryTheme + ": " + c.SubTheme
}

// ClassificationResult is the outcome of classifying one article against the
// taxonomy. A re-analysis supersedes the previous result, it never appends.
type ClassificationResult struct {
	MatchedClusters []string `json:"matched_clusters"` // "Primary: Sub" labels
	ConfidenceScore float64  `json:"confidence_score"` // 0.0-1.0
	Rationale       string   `json:"rationale"`        // Optional human-readable reasoning
}

// Tracked keyword statuses.
const (
	KeywordStatusActive   = "active"
	KeywordStatusPaused   = "paused"
	KeywordStatusArchived = "archived"
)

// TrackedKeyword is a persisted keyword of interest whose matching-article
// count is maintained over time. The count only moves through single-row
// increments at the storage layer.
type TrackedKeyword struct {
	ID           string    `json:"id"`
	Keyword      string    `json:"keyword"`
	Status       string    `json:"status"`
	ArticleCount int64     `json:"article_count"`
	LastMatched  time.Time `json:"last_matched"`
}

// Usage record statuses.
const (
	UsageStatusSuccess = "success"
	UsageStatusError   = "error"
)

// UsageRecord is one append-only telemetry entry per upstream model call.
// Records are never mutated after creation.
type UsageRecord struct {
	ID            string            `json:"id"`
	Model         string            `json:"model"`
	PromptTokens  int               `json:"prompt_tokens"`
	OutputTokens  int               `json:"output_tokens"`
	EstimatedCost float64           `json:"estimated_cost"` // USD
	Duration      time.Duration     `json:"duration"`
	Status        string            `json:"status"`
	ErrorMessage  string            `json:"error_message"`
	Metadata      map[string]string `json:"metadata"`
	CreatedAt     time.Time         `json:"created_at"`
}

// RunSummary is the externally observable result of one ingestion run. A run
// always produces a summary, even a "zero inserted, N errors" one.
type RunSummary struct {
	RunID              string    `json:"run_id"`
	Keywords           []string  `json:"keywords"`
	TotalCandidates    int       `json:"total_candidates"`
	Inserted           int       `json:"inserted"`
	DuplicateSkips     int       `json:"duplicate_skips"`
	LowScoreSkips      int       `json:"low_score_skips"`
	ValidationDrops    int       `json:"validation_drops"`
	ExtractionFailures int       `json:"extraction_failures"`
	Errors             []string  `json:"errors"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
}

// ErrorCount returns the number of per-item errors recorded during the run.
func (s RunSummary) ErrorCount() int {
	return len(s.Errors)
}
