package classify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"newsradar/internal/core"
	"newsradar/internal/llm"
)

var testClusters = []core.Cluster{
	{ID: "c1", PrimaryTheme: "Housing", SubTheme: "Rates", Keywords: []string{"mortgage", "interest rate"}, Active: true},
	{ID: "c2", PrimaryTheme: "Economy", SubTheme: "Policy", Keywords: []string{"federal reserve", "inflation"}, Active: true},
}

func TestMatchInline(t *testing.T) {
	tests := []struct {
		name      string
		candidate core.CandidateArticle
		expected  []string
	}{
		{
			name:      "keyword in title",
			candidate: core.CandidateArticle{Title: "Mortgage applications fall"},
			expected:  []string{"Housing: Rates"},
		},
		{
			name:      "keyword in summary, case-insensitive",
			candidate: core.CandidateArticle{Title: "Markets", Summary: "The Federal Reserve held steady."},
			expected:  []string{"Economy: Policy"},
		},
		{
			name: "multiple clusters",
			candidate: core.CandidateArticle{
				Title:   "Inflation pushes mortgage costs up",
				Summary: "",
			},
			expected: []string{"Housing: Rates", "Economy: Policy"},
		},
		{
			name:      "no hits",
			candidate: core.CandidateArticle{Title: "Local team wins championship"},
			expected:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MatchInline(tt.candidate, testClusters)
			if len(result.MatchedClusters) != len(tt.expected) {
				t.Fatalf("Expected %v, got %v", tt.expected, result.MatchedClusters)
			}
			for i, label := range tt.expected {
				if result.MatchedClusters[i] != label {
					t.Errorf("Expected cluster %q at %d, got %q", label, i, result.MatchedClusters[i])
				}
			}
			if len(tt.expected) > 0 && result.ConfidenceScore != InlineConfidence {
				t.Errorf("Inline matches carry the placeholder confidence, got %v", result.ConfidenceScore)
			}
			if len(tt.expected) == 0 && result.ConfidenceScore != 0 {
				t.Errorf("No-hit results carry zero confidence, got %v", result.ConfidenceScore)
			}
		})
	}
}

func TestClassify_ParsesResponse(t *testing.T) {
	mock := llm.NewMockProvider().Queue("```json\n" +
		`{"matched_clusters": ["housing: rates"], "confidence_score": 0.85, "rationale": "mortgage coverage", "keywords": ["mortgage rates", "refinancing"]}` +
		"\n```")
	classifier := NewClassifier(mock, llm.Options{})

	article := core.Article{URL: "https://example.com/a", Title: "Mortgage rates climb"}
	result, keywords, err := classifier.Classify(context.Background(), article, testClusters)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if len(result.MatchedClusters) != 1 || result.MatchedClusters[0] != "Housing: Rates" {
		t.Errorf("Cluster labels should be canonicalized, got %v", result.MatchedClusters)
	}
	if result.ConfidenceScore != 0.85 {
		t.Errorf("Unexpected confidence: %v", result.ConfidenceScore)
	}
	if len(keywords) != 2 || keywords[0] != "mortgage rates" {
		t.Errorf("Unexpected keywords: %v", keywords)
	}

	if len(mock.Prompts) != 1 || !strings.Contains(mock.Prompts[0], "Housing: Rates") {
		t.Error("Prompt should embed the formatted taxonomy")
	}
}

func TestClassify_UnknownLabelsDropped(t *testing.T) {
	mock := llm.NewMockProvider().Queue(`{"matched_clusters": ["Sports: Football"], "confidence_score": 0.9}`)
	classifier := NewClassifier(mock, llm.Options{})

	result, _, err := classifier.Classify(context.Background(), core.Article{Title: "t"}, testClusters)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if len(result.MatchedClusters) != 0 {
		t.Errorf("Labels outside the snapshot must be dropped, got %v", result.MatchedClusters)
	}
}

func TestClassify_InconclusiveOnGarbage(t *testing.T) {
	mock := llm.NewMockProvider().Queue("I think this article is about housing, maybe?")
	classifier := NewClassifier(mock, llm.Options{})

	result, keywords, err := classifier.Classify(context.Background(), core.Article{Title: "t"}, testClusters)
	if err != nil {
		t.Fatalf("Parse failure must not be an error: %v", err)
	}
	if len(result.MatchedClusters) != 0 || result.ConfidenceScore != 0 {
		t.Errorf("Expected an inconclusive result, got %+v", result)
	}
	if !strings.Contains(result.Rationale, "could not classify") {
		t.Errorf("Rationale should name the failure, got %q", result.Rationale)
	}
	if keywords != nil {
		t.Errorf("No keywords expected, got %v", keywords)
	}
}

func TestClassify_ProviderError(t *testing.T) {
	mock := llm.NewMockProvider().QueueError(errors.New("rate limited"))
	classifier := NewClassifier(mock, llm.Options{})

	_, _, err := classifier.Classify(context.Background(), core.Article{Title: "t"}, testClusters)
	if err == nil {
		t.Fatal("Provider failures must surface as errors")
	}
}
