package keywords

import (
	"context"
	"errors"
	"fmt"

	"newsradar/internal/core"
)

// CounterStore is the slice of persistence the aggregator needs: a single-row
// atomic increment per tracked keyword.
type CounterStore interface {
	IncrementKeywordCount(ctx context.Context, keywordID string) error
}

// Aggregator increments tracked-keyword counters for analyzed items.
type Aggregator struct {
	store CounterStore
}

// NewAggregator creates an aggregator backed by the given counter store.
func NewAggregator(store CounterStore) *Aggregator {
	return &Aggregator{store: store}
}

// Apply determines which tracked entries are matched by the extracted
// keywords of one analyzed item and increments each matched entry exactly
// once, no matter how many extracted keywords hit it. Only active entries are
// considered. Returns the matched keywords; increment failures are joined
// into the returned error but do not stop the remaining increments.
func (a *Aggregator) Apply(ctx context.Context, extracted []string, tracked []core.TrackedKeyword) ([]string, error) {
	if len(extracted) == 0 || len(tracked) == 0 {
		return nil, nil
	}

	var matched []string
	var errs []error

	for _, entry := range tracked {
		if entry.Status != core.KeywordStatusActive {
			continue
		}
		if !matchesAny(extracted, entry.Keyword) {
			continue
		}
		matched = append(matched, entry.Keyword)
		if err := a.store.IncrementKeywordCount(ctx, entry.ID); err != nil {
			errs = append(errs, fmt.Errorf("increment %q: %w", entry.Keyword, err))
		}
	}

	return matched, errors.Join(errs...)
}

// matchesAny reports whether any extracted keyword matches the tracked one.
func matchesAny(extracted []string, tracked string) bool {
	for _, e := range extracted {
		if Matches(e, tracked) {
			return true
		}
	}
	return false
}
