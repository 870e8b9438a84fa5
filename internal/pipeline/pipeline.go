// Package pipeline composes discovery and backlog analysis out of the
// extract/normalize/relevance/classify building blocks. A run is best-effort:
// individual articles fail without taking down the run, and every run ends
// with a summary of what happened.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"newsradar/internal/batch"
	"newsradar/internal/classify"
	"newsradar/internal/core"
	"newsradar/internal/extract"
	"newsradar/internal/keywords"
	"newsradar/internal/llm"
	"newsradar/internal/logger"
	"newsradar/internal/normalize"
	"newsradar/internal/relevance"
	"newsradar/internal/store"
)

var (
	// ErrMissingTemplate means the discovery prompt template has no keyword
	// placeholder, so every run would send the same prompt.
	ErrMissingTemplate = errors.New("discovery prompt template missing {{keyword}} placeholder")

	// ErrEmptyTaxonomy means classification was requested but no active
	// clusters exist to classify against.
	ErrEmptyTaxonomy = errors.New("no active clusters configured")
)

// KeywordPlaceholder marks where the search keyword goes in a prompt template.
const KeywordPlaceholder = "{{keyword}}"

// DefaultPromptTemplate is used when no template is configured.
const DefaultPromptTemplate = `Search for up to {{max_results}} recent news articles about "{{keyword}}".

Respond with a JSON array. Each element must be an object with these fields:
- "title": the article headline
- "url": the canonical article URL
- "source": the publisher name
- "summary": one or two sentences describing the article
- "relevance_score": how relevant the article is to "{{keyword}}", 0.0 to 1.0
- "published_date": publication date in YYYY-MM-DD format

Only include real, verifiable articles. If you find none, return [].`

// Store is the persistence the pipeline needs. *store.Store satisfies it;
// tests substitute fakes.
type Store interface {
	HasArticle(ctx context.Context, url string) (bool, error)
	InsertArticle(ctx context.Context, article core.Article) error
	ListActiveClusters(ctx context.Context) ([]core.Cluster, error)
	ListUnanalyzedArticles(ctx context.Context, limit int) ([]core.Article, error)
	SaveClassification(ctx context.Context, url string, result core.ClassificationResult, keywords []string) error
	ListActiveTrackedKeywords(ctx context.Context) ([]core.TrackedKeyword, error)
	IncrementKeywordCount(ctx context.Context, keywordID string) error
}

// Options holds the run policy. Zero values fall back to sane defaults in New.
type Options struct {
	PromptTemplate       string
	MinScore             float64
	MaxResults           int
	IncludeTaxonomy      bool
	InlineClassification bool
	Generation           llm.Options
	BatchSize            int
	BatchPause           time.Duration
	AnalysisLimit        int
}

// Pipeline drives ingestion runs and backlog analysis.
type Pipeline struct {
	provider llm.Provider
	store    Store
	opts     Options
}

// New creates a pipeline. An empty prompt template gets the built-in default.
func New(provider llm.Provider, st Store, opts Options) *Pipeline {
	if opts.PromptTemplate == "" {
		opts.PromptTemplate = DefaultPromptTemplate
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 10
	}
	return &Pipeline{provider: provider, store: st, opts: opts}
}

// Discover runs one ingestion pass over the given keywords. It always returns
// a summary; the error return is reserved for configuration problems that
// make the whole run impossible.
func (p *Pipeline) Discover(ctx context.Context, searchKeywords []string) (core.RunSummary, error) {
	log := logger.Get()
	summary := core.RunSummary{
		RunID:     uuid.New().String(),
		Keywords:  searchKeywords,
		StartedAt: time.Now(),
	}

	if !strings.Contains(p.opts.PromptTemplate, KeywordPlaceholder) {
		summary.FinishedAt = time.Now()
		return summary, ErrMissingTemplate
	}

	var clusters []core.Cluster
	if p.opts.InlineClassification || p.opts.IncludeTaxonomy {
		var err error
		clusters, err = p.store.ListActiveClusters(ctx)
		if err != nil {
			summary.FinishedAt = time.Now()
			return summary, fmt.Errorf("failed to load clusters: %w", err)
		}
		if p.opts.InlineClassification && len(clusters) == 0 {
			summary.FinishedAt = time.Now()
			return summary, ErrEmptyTaxonomy
		}
	}

	seen := make(map[string]struct{})
	for _, keyword := range searchKeywords {
		if ctx.Err() != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("run stopped: %v", ctx.Err()))
			break
		}
		p.discoverKeyword(ctx, keyword, clusters, seen, &summary)
	}

	summary.FinishedAt = time.Now()
	log.Info("discovery run finished",
		"run_id", summary.RunID,
		"candidates", summary.TotalCandidates,
		"inserted", summary.Inserted,
		"duplicates", summary.DuplicateSkips,
		"errors", summary.ErrorCount())
	return summary, nil
}

func (p *Pipeline) discoverKeyword(ctx context.Context, keyword string, clusters []core.Cluster, seen map[string]struct{}, summary *core.RunSummary) {
	log := logger.Get()

	prompt := p.buildPrompt(keyword, clusters)
	text, _, err := p.provider.GenerateText(ctx, prompt, p.opts.Generation)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s: upstream call failed: %v", keyword, err))
		return
	}

	records := extract.Records(text)
	var candidates []core.CandidateArticle
	if len(records) == 0 {
		// Keep a trace that the call happened but produced nothing usable.
		// The placeholder has no URL, so validation drops it below.
		summary.ExtractionFailures++
		log.Warn("no articles extracted from response", "keyword", keyword, "response_len", len(text))
		candidates = []core.CandidateArticle{{Title: "No articles found"}}
	} else {
		candidates = normalize.Candidates(records)
	}
	summary.TotalCandidates += len(candidates)

	valid := make([]core.CandidateArticle, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.URL == "" || candidate.Title == "" {
			summary.ValidationDrops++
			continue
		}
		valid = append(valid, candidate)
	}

	filtered, stats := relevance.Filter(valid, p.opts.MinScore, p.opts.MaxResults)
	summary.LowScoreSkips += stats.ScoreRejected

	for _, candidate := range filtered {
		if _, dup := seen[candidate.URL]; dup {
			summary.DuplicateSkips++
			continue
		}
		exists, err := p.store.HasArticle(ctx, candidate.URL)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: dedup check failed: %v", candidate.URL, err))
			continue
		}
		if exists {
			seen[candidate.URL] = struct{}{}
			summary.DuplicateSkips++
			continue
		}

		article := toArticle(candidate)
		if p.opts.InlineClassification && len(article.MatchedClusters) == 0 {
			result := classify.MatchInline(candidate, clusters)
			article.MatchedClusters = result.MatchedClusters
			article.ConfidenceScore = result.ConfidenceScore
		}

		if err := p.store.InsertArticle(ctx, article); err != nil {
			if errors.Is(err, store.ErrDuplicateArticle) {
				// Lost the race against a concurrent writer; same outcome
				// as the pre-check catching it.
				seen[candidate.URL] = struct{}{}
				summary.DuplicateSkips++
				continue
			}
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: insert failed: %v", candidate.URL, err))
			continue
		}
		seen[candidate.URL] = struct{}{}
		summary.Inserted++
	}
}

func (p *Pipeline) buildPrompt(keyword string, clusters []core.Cluster) string {
	prompt := strings.ReplaceAll(p.opts.PromptTemplate, KeywordPlaceholder, keyword)
	prompt = strings.ReplaceAll(prompt, "{{max_results}}", strconv.Itoa(p.opts.MaxResults))

	if p.opts.IncludeTaxonomy && len(clusters) > 0 {
		var b strings.Builder
		b.WriteString(prompt)
		b.WriteString("\n\nPrioritize articles related to these themes:\n")
		for _, cluster := range clusters {
			b.WriteString("- ")
			b.WriteString(cluster.Label())
			if len(cluster.Keywords) > 0 {
				b.WriteString(" (")
				b.WriteString(strings.Join(cluster.Keywords, ", "))
				b.WriteString(")")
			}
			b.WriteString("\n")
		}
		prompt = b.String()
	}
	return prompt
}

func toArticle(candidate core.CandidateArticle) core.Article {
	return core.Article{
		URL:                 candidate.URL,
		Title:               candidate.Title,
		Source:              candidate.Source,
		Summary:             candidate.Summary,
		RelevanceScore:      candidate.RelevanceScore,
		MatchedClusters:     candidate.MatchedClusters,
		IsCompetitorCovered: candidate.IsCompetitorCovered,
		PublishedAt:         candidate.PublishedAt,
		DateAdded:           time.Now(),
	}
}

// AnalyzeBacklog classifies unanalyzed articles in batches and updates
// tracked keyword counts from the extracted keywords.
func (p *Pipeline) AnalyzeBacklog(ctx context.Context) (batch.Tally, error) {
	log := logger.Get()

	articles, err := p.store.ListUnanalyzedArticles(ctx, p.opts.AnalysisLimit)
	if err != nil {
		return batch.Tally{}, fmt.Errorf("failed to list unanalyzed articles: %w", err)
	}
	if len(articles) == 0 {
		log.Info("no unanalyzed articles")
		return batch.Tally{}, nil
	}

	clusters, err := p.store.ListActiveClusters(ctx)
	if err != nil {
		return batch.Tally{}, fmt.Errorf("failed to load clusters: %w", err)
	}
	if len(clusters) == 0 {
		return batch.Tally{}, ErrEmptyTaxonomy
	}

	tracked, err := p.store.ListActiveTrackedKeywords(ctx)
	if err != nil {
		// Keyword counting is additive; classification still proceeds.
		log.Warn("failed to load tracked keywords", "error", err)
		tracked = nil
	}

	classifier := classify.NewClassifier(p.provider, p.opts.Generation)
	aggregator := keywords.NewAggregator(p.store)

	tally := batch.Run(ctx, articles, batch.Options{BatchSize: p.opts.BatchSize, Pause: p.opts.BatchPause},
		func(ctx context.Context, article core.Article) error {
			result, extracted, err := classifier.Classify(ctx, article, clusters)
			if err != nil {
				return err
			}
			if err := p.store.SaveClassification(ctx, article.URL, result, extracted); err != nil {
				return fmt.Errorf("failed to save classification: %w", err)
			}
			if len(tracked) > 0 && len(extracted) > 0 {
				if _, err := aggregator.Apply(ctx, extracted, tracked); err != nil {
					log.Warn("keyword count update failed", "url", article.URL, "error", err)
				}
			}
			return nil
		})

	log.Info("backlog analysis finished",
		"total", tally.Total,
		"succeeded", tally.Succeeded,
		"failed", tally.Failed,
		"skipped", tally.Skipped)
	return tally, nil
}
