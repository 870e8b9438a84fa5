package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"newsradar/internal/classify"
	"newsradar/internal/core"
	"newsradar/internal/llm"
)

// fakeStore is an in-memory Store. Batch analysis calls it from multiple
// goroutines, so every method locks.
type fakeStore struct {
	mu              sync.Mutex
	articles        map[string]core.Article
	clusters        []core.Cluster
	tracked         []core.TrackedKeyword
	classifications map[string]core.ClassificationResult
	increments      map[string]int
	insertErr       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		articles:        make(map[string]core.Article),
		classifications: make(map[string]core.ClassificationResult),
		increments:      make(map[string]int),
	}
}

func (f *fakeStore) HasArticle(_ context.Context, url string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.articles[url]
	return ok, nil
}

func (f *fakeStore) InsertArticle(_ context.Context, article core.Article) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.articles[article.URL] = article
	return nil
}

func (f *fakeStore) ListActiveClusters(_ context.Context) ([]core.Cluster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clusters, nil
}

func (f *fakeStore) ListUnanalyzedArticles(_ context.Context, limit int) ([]core.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Article
	for _, a := range f.articles {
		if !a.Analyzed {
			out = append(out, a)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) SaveClassification(_ context.Context, url string, result core.ClassificationResult, keywords []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	article, ok := f.articles[url]
	if !ok {
		return fmt.Errorf("no article with url %s", url)
	}
	article.Analyzed = true
	article.Keywords = keywords
	f.articles[url] = article
	f.classifications[url] = result
	return nil
}

func (f *fakeStore) ListActiveTrackedKeywords(_ context.Context) ([]core.TrackedKeyword, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tracked, nil
}

func (f *fakeStore) IncrementKeywordCount(_ context.Context, keywordID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.increments[keywordID]++
	return nil
}

const discoveryResponse = "```json\n" + `[
  {"title": "Fed signals rate pause", "url": "https://news.example.com/fed-pause", "source": "Example News", "summary": "The Fed held rates steady.", "relevance_score": 0.95},
  {"title": "Local bakery opens", "url": "https://news.example.com/bakery", "summary": "A bakery opened downtown.", "relevance_score": 0.4},
  {"title": "Mortgage rates dip below 6%", "url": "https://news.example.com/mortgage-dip", "summary": "Mortgage rates fell this week.", "relevance_score": 0.8}
]` + "\n```"

func TestDiscoverFiltersAndInserts(t *testing.T) {
	provider := llm.NewMockProvider().Queue(discoveryResponse)
	st := newFakeStore()
	p := New(provider, st, Options{MinScore: 0.6})

	summary, err := p.Discover(context.Background(), []string{"interest rates"})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if summary.TotalCandidates != 3 {
		t.Errorf("TotalCandidates = %d, want 3", summary.TotalCandidates)
	}
	if summary.Inserted != 2 {
		t.Errorf("Inserted = %d, want 2", summary.Inserted)
	}
	if summary.LowScoreSkips != 1 {
		t.Errorf("LowScoreSkips = %d, want 1", summary.LowScoreSkips)
	}
	if summary.ErrorCount() != 0 {
		t.Errorf("errors = %v, want none", summary.Errors)
	}
	if _, ok := st.articles["https://news.example.com/bakery"]; ok {
		t.Error("low-score article was inserted")
	}
	if summary.FinishedAt.Before(summary.StartedAt) {
		t.Error("FinishedAt before StartedAt")
	}
	if len(provider.Prompts) != 1 || !strings.Contains(provider.Prompts[0], "interest rates") {
		t.Errorf("prompt did not embed the keyword: %q", provider.Prompts)
	}
}

func TestDiscoverSkipsDuplicates(t *testing.T) {
	provider := llm.NewMockProvider().Queue(discoveryResponse)
	st := newFakeStore()
	p := New(provider, st, Options{MinScore: 0.6})

	if _, err := p.Discover(context.Background(), []string{"rates"}); err != nil {
		t.Fatalf("first Discover() error = %v", err)
	}
	summary, err := p.Discover(context.Background(), []string{"rates"})
	if err != nil {
		t.Fatalf("second Discover() error = %v", err)
	}

	if summary.Inserted != 0 {
		t.Errorf("Inserted = %d, want 0 on rerun", summary.Inserted)
	}
	if summary.DuplicateSkips != 2 {
		t.Errorf("DuplicateSkips = %d, want 2", summary.DuplicateSkips)
	}
	if len(st.articles) != 2 {
		t.Errorf("store has %d articles, want 2", len(st.articles))
	}
}

func TestDiscoverSameURLTwiceInOneRun(t *testing.T) {
	response := `[
  {"title": "Fed signals rate pause", "url": "https://news.example.com/fed-pause", "relevance_score": 0.9},
  {"title": "Fed signals rate pause (syndicated)", "url": "https://news.example.com/fed-pause", "relevance_score": 0.8}
]`
	provider := llm.NewMockProvider().Queue(response)
	st := newFakeStore()
	p := New(provider, st, Options{MinScore: 0.6})

	summary, err := p.Discover(context.Background(), []string{"rates"})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if summary.Inserted != 1 {
		t.Errorf("Inserted = %d, want 1", summary.Inserted)
	}
	if summary.DuplicateSkips != 1 {
		t.Errorf("DuplicateSkips = %d, want 1", summary.DuplicateSkips)
	}
	if len(st.articles) != 1 {
		t.Errorf("store has %d articles, want 1", len(st.articles))
	}
}

func TestDiscoverEmptyExtraction(t *testing.T) {
	provider := llm.NewMockProvider().Queue("I could not find any articles on that topic, sorry.")
	st := newFakeStore()
	p := New(provider, st, Options{})

	summary, err := p.Discover(context.Background(), []string{"obscure topic"})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if summary.ExtractionFailures != 1 {
		t.Errorf("ExtractionFailures = %d, want 1", summary.ExtractionFailures)
	}
	if summary.TotalCandidates != 1 {
		t.Errorf("TotalCandidates = %d, want 1 (placeholder)", summary.TotalCandidates)
	}
	if summary.ValidationDrops != 1 {
		t.Errorf("ValidationDrops = %d, want 1", summary.ValidationDrops)
	}
	if summary.Inserted != 0 {
		t.Errorf("Inserted = %d, want 0", summary.Inserted)
	}
}

func TestDiscoverUpstreamFailureIsContained(t *testing.T) {
	provider := llm.NewMockProvider().
		QueueError(errors.New("model overloaded")).
		Queue(discoveryResponse)
	st := newFakeStore()
	p := New(provider, st, Options{MinScore: 0.6})

	summary, err := p.Discover(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Discover() error = %v, want contained failure", err)
	}

	if summary.ErrorCount() != 1 {
		t.Fatalf("errors = %v, want exactly one", summary.Errors)
	}
	if !strings.Contains(summary.Errors[0], "first") {
		t.Errorf("error not attributed to the failing keyword: %q", summary.Errors[0])
	}
	if summary.Inserted != 2 {
		t.Errorf("Inserted = %d, want 2 from the surviving keyword", summary.Inserted)
	}
}

func TestDiscoverStorageFailureIsContained(t *testing.T) {
	provider := llm.NewMockProvider().Queue(discoveryResponse)
	st := newFakeStore()
	st.insertErr = errors.New("disk full")
	p := New(provider, st, Options{MinScore: 0.6})

	summary, err := p.Discover(context.Background(), []string{"rates"})
	if err != nil {
		t.Fatalf("Discover() error = %v, want contained failures", err)
	}

	if summary.Inserted != 0 {
		t.Errorf("Inserted = %d, want 0", summary.Inserted)
	}
	if summary.ErrorCount() != 2 {
		t.Errorf("errors = %v, want one per failed insert", summary.Errors)
	}
}

func TestDiscoverTemplateWithoutPlaceholder(t *testing.T) {
	p := New(llm.NewMockProvider(), newFakeStore(), Options{PromptTemplate: "find news"})

	_, err := p.Discover(context.Background(), []string{"rates"})
	if !errors.Is(err, ErrMissingTemplate) {
		t.Errorf("Discover() error = %v, want ErrMissingTemplate", err)
	}
}

func TestDiscoverInlineClassification(t *testing.T) {
	provider := llm.NewMockProvider().Queue(discoveryResponse)
	st := newFakeStore()
	st.clusters = []core.Cluster{
		{ID: "c1", PrimaryTheme: "Housing", SubTheme: "Rates", Keywords: []string{"mortgage"}, Active: true},
	}
	p := New(provider, st, Options{MinScore: 0.6, InlineClassification: true})

	if _, err := p.Discover(context.Background(), []string{"rates"}); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	article, ok := st.articles["https://news.example.com/mortgage-dip"]
	if !ok {
		t.Fatal("mortgage article not inserted")
	}
	if len(article.MatchedClusters) != 1 || article.MatchedClusters[0] != "Housing: Rates" {
		t.Errorf("MatchedClusters = %v, want [Housing: Rates]", article.MatchedClusters)
	}
	if article.ConfidenceScore != classify.InlineConfidence {
		t.Errorf("ConfidenceScore = %v, want the inline placeholder %v", article.ConfidenceScore, classify.InlineConfidence)
	}

	other := st.articles["https://news.example.com/fed-pause"]
	if len(other.MatchedClusters) != 0 {
		t.Errorf("unrelated article got clusters %v", other.MatchedClusters)
	}
	if other.ConfidenceScore != 0 {
		t.Errorf("article with no inline hit has confidence %v, want 0", other.ConfidenceScore)
	}
}

func TestDiscoverInlineClassificationNeedsTaxonomy(t *testing.T) {
	p := New(llm.NewMockProvider().Queue(discoveryResponse), newFakeStore(), Options{InlineClassification: true})

	_, err := p.Discover(context.Background(), []string{"rates"})
	if !errors.Is(err, ErrEmptyTaxonomy) {
		t.Errorf("Discover() error = %v, want ErrEmptyTaxonomy", err)
	}
}

const classificationResponse = "```json\n" + `{
  "matched_clusters": ["Housing: Rates"],
  "confidence_score": 0.85,
  "rationale": "The article discusses mortgage rate movement.",
  "keywords": ["mortgage rates", "federal reserve"]
}` + "\n```"

func TestAnalyzeBacklog(t *testing.T) {
	provider := llm.NewMockProvider().Queue(classificationResponse)
	st := newFakeStore()
	st.articles["https://news.example.com/a"] = core.Article{URL: "https://news.example.com/a", Title: "Mortgage rates dip"}
	st.articles["https://news.example.com/b"] = core.Article{URL: "https://news.example.com/b", Title: "Fed holds steady"}
	st.clusters = []core.Cluster{
		{ID: "c1", PrimaryTheme: "Housing", SubTheme: "Rates", Keywords: []string{"mortgage"}, Active: true},
	}
	st.tracked = []core.TrackedKeyword{
		{ID: "k1", Keyword: "mortgage rate", Status: core.KeywordStatusActive},
		{ID: "k2", Keyword: "inflation", Status: core.KeywordStatusActive},
	}
	p := New(provider, st, Options{BatchSize: 2})

	tally, err := p.AnalyzeBacklog(context.Background())
	if err != nil {
		t.Fatalf("AnalyzeBacklog() error = %v", err)
	}

	if tally.Total != 2 || tally.Succeeded != 2 {
		t.Errorf("tally = %+v, want 2 total, 2 succeeded", tally)
	}
	if len(st.classifications) != 2 {
		t.Errorf("classifications saved = %d, want 2", len(st.classifications))
	}
	for url, a := range st.articles {
		if !a.Analyzed {
			t.Errorf("article %s not marked analyzed", url)
		}
	}
	// "mortgage rates" folds to the tracked "mortgage rate"; once per article.
	if st.increments["k1"] != 2 {
		t.Errorf("increments[k1] = %d, want 2", st.increments["k1"])
	}
	if st.increments["k2"] != 0 {
		t.Errorf("increments[k2] = %d, want 0", st.increments["k2"])
	}
}

func TestAnalyzeBacklogEmptyTaxonomy(t *testing.T) {
	st := newFakeStore()
	st.articles["https://news.example.com/a"] = core.Article{URL: "https://news.example.com/a", Title: "t"}
	p := New(llm.NewMockProvider(), st, Options{})

	_, err := p.AnalyzeBacklog(context.Background())
	if !errors.Is(err, ErrEmptyTaxonomy) {
		t.Errorf("AnalyzeBacklog() error = %v, want ErrEmptyTaxonomy", err)
	}
}
