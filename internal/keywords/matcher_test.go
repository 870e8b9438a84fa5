package keywords

import (
	"context"
	"testing"

	"newsradar/internal/core"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Mortgage Rates", "mortgage rates"},
		{"  30-Year  Mortgage ", "30 year mortgage"},
		{"A.I. (news)!", "ai news"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.expected {
			t.Errorf("Normalize(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name      string
		extracted string
		tracked   string
		expected  bool
	}{
		{"exact", "mortgage rate", "mortgage rate", true},
		{"exact after normalization", "Mortgage Rate!", "mortgage rate", true},
		{"plural fold", "mortgage rates", "mortgage rate", true},
		{"plural fold reversed", "mortgage rate", "mortgage rates", true},
		{"containment", "30-year mortgage rate trend", "mortgage rate", true},
		{"containment reversed", "rates", "mortgage rates and lending", true},
		{"partial overlap below threshold", "interest rate", "mortgage rate", false},
		{"full word overlap", "rates for mortgages", "mortgage rate", true},
		{"unrelated", "refinancing boom", "home insurance", false},
		{"empty extracted", "", "mortgage rate", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.extracted, tt.tracked); got != tt.expected {
				t.Errorf("Matches(%q, %q) = %v, expected %v", tt.extracted, tt.tracked, got, tt.expected)
			}
		})
	}
}

type fakeCounterStore struct {
	increments map[string]int
	failFor    map[string]bool
}

func (f *fakeCounterStore) IncrementKeywordCount(_ context.Context, keywordID string) error {
	if f.failFor[keywordID] {
		return context.DeadlineExceeded
	}
	if f.increments == nil {
		f.increments = make(map[string]int)
	}
	f.increments[keywordID]++
	return nil
}

func TestAggregator_IncrementsOncePerEntry(t *testing.T) {
	store := &fakeCounterStore{}
	agg := NewAggregator(store)

	tracked := []core.TrackedKeyword{
		{ID: "kw-1", Keyword: "mortgage rate", Status: core.KeywordStatusActive},
		{ID: "kw-2", Keyword: "home insurance", Status: core.KeywordStatusActive},
		{ID: "kw-3", Keyword: "rate", Status: core.KeywordStatusPaused},
	}
	// Two extracted keywords both hit "mortgage rate"; the counter must
	// still move only once.
	extracted := []string{"mortgage rates", "30-year mortgage rate trend"}

	matched, err := agg.Apply(context.Background(), extracted, tracked)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if len(matched) != 1 || matched[0] != "mortgage rate" {
		t.Errorf("Expected only 'mortgage rate' matched, got %v", matched)
	}
	if store.increments["kw-1"] != 1 {
		t.Errorf("Expected exactly 1 increment for kw-1, got %d", store.increments["kw-1"])
	}
	if store.increments["kw-3"] != 0 {
		t.Error("Paused keywords must not be incremented")
	}
}

func TestAggregator_IncrementFailureDoesNotStopOthers(t *testing.T) {
	store := &fakeCounterStore{failFor: map[string]bool{"kw-1": true}}
	agg := NewAggregator(store)

	tracked := []core.TrackedKeyword{
		{ID: "kw-1", Keyword: "mortgage rate", Status: core.KeywordStatusActive},
		{ID: "kw-2", Keyword: "refinancing", Status: core.KeywordStatusActive},
	}

	matched, err := agg.Apply(context.Background(), []string{"mortgage rates", "refinancing"}, tracked)
	if err == nil {
		t.Fatal("Expected an error for the failed increment")
	}
	if len(matched) != 2 {
		t.Errorf("Both entries should still be reported matched, got %v", matched)
	}
	if store.increments["kw-2"] != 1 {
		t.Errorf("Second increment should have proceeded, got %d", store.increments["kw-2"])
	}
}
