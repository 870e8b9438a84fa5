// Package relevance applies the minimum-score and result-limit policies to
// candidate articles.
package relevance

import "newsradar/internal/core"

// Stats describes what a filter pass did, for the run summary.
type Stats struct {
	Evaluated     int `json:"evaluated"`
	ScoreRejected int `json:"score_rejected"`
	Truncated     int `json:"truncated"`
}

// Filter returns the candidates whose relevance score is at or above
// minScore, truncated to the first limit items, original order preserved.
// Unscored candidates always pass: inline classification may simply not have
// assigned a score. minScore=0 and limit=0 are deliberate no-ops; callers
// that want strict filtering must pass a positive threshold.
func Filter(candidates []core.CandidateArticle, minScore float64, limit int) ([]core.CandidateArticle, Stats) {
	stats := Stats{Evaluated: len(candidates)}

	kept := make([]core.CandidateArticle, 0, len(candidates))
	for _, candidate := range candidates {
		if minScore > 0 && candidate.Scored && candidate.RelevanceScore < minScore {
			stats.ScoreRejected++
			continue
		}
		kept = append(kept, candidate)
	}

	if limit > 0 && len(kept) > limit {
		stats.Truncated = len(kept) - limit
		kept = kept[:limit]
	}

	return kept, stats
}
