// Package normalize maps the loosely-typed records recovered from upstream
// text into the canonical CandidateArticle shape. The mapping is total and
// side-effect-free: bad records come out as bad candidates and are rejected
// downstream, never here.
package normalize

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"newsradar/internal/core"
	"newsradar/internal/extract"
)

// UnknownSource is used when the record gives no source and the URL host
// cannot be parsed.
const UnknownSource = "Unknown Source"

// Accepted field-name aliases per canonical field. Resolved once at
// normalization time; first present alias wins.
var (
	titleAliases      = []string{"title", "headline"}
	urlAliases        = []string{"url", "link"}
	summaryAliases    = []string{"summary", "description"}
	sourceAliases     = []string{"source"}
	scoreAliases      = []string{"relevance_score", "score"}
	clustersAliases   = []string{"matched_clusters", "clusters"}
	competitorAliases = []string{"is_competitor_covered", "competitor_covered"}
	publishedAliases  = []string{"published_at", "published_date", "date"}
)

// Candidate maps one record into a CandidateArticle. Missing source falls
// back to the URL host (leading "www." stripped), then to UnknownSource.
func Candidate(rec extract.Record) core.CandidateArticle {
	candidate := core.CandidateArticle{
		Title:       stringField(rec, titleAliases),
		URL:         stringField(rec, urlAliases),
		Summary:     stringField(rec, summaryAliases),
		Source:      stringField(rec, sourceAliases),
		PublishedAt: timeField(rec, publishedAliases),
	}

	if score, ok := floatField(rec, scoreAliases); ok {
		candidate.RelevanceScore = clampScore(score)
		candidate.Scored = true
	}
	candidate.MatchedClusters = stringListField(rec, clustersAliases)
	candidate.IsCompetitorCovered = boolField(rec, competitorAliases)

	if candidate.Source == "" {
		candidate.Source = sourceFromURL(candidate.URL)
	}

	return candidate
}

// Candidates maps a batch of records, preserving order.
func Candidates(recs []extract.Record) []core.CandidateArticle {
	candidates := make([]core.CandidateArticle, 0, len(recs))
	for _, rec := range recs {
		candidates = append(candidates, Candidate(rec))
	}
	return candidates
}

// sourceFromURL derives a publisher name from the URL host component.
func sourceFromURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return UnknownSource
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}

func stringField(rec extract.Record, aliases []string) string {
	for _, key := range aliases {
		if v, ok := rec[key]; ok {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func floatField(rec extract.Record, aliases []string) (float64, bool) {
	for _, key := range aliases {
		v, ok := rec[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case string:
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}

func stringListField(rec extract.Record, aliases []string) []string {
	for _, key := range aliases {
		v, ok := rec[key]
		if !ok {
			continue
		}
		switch list := v.(type) {
		case []any:
			var out []string
			for _, item := range list {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
				}
			}
			return out
		case []string:
			return list
		case string:
			// A comma-separated string is close enough to a list.
			var out []string
			for _, part := range strings.Split(list, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
			return out
		}
	}
	return nil
}

func boolField(rec extract.Record, aliases []string) bool {
	for _, key := range aliases {
		v, ok := rec[key]
		if !ok {
			continue
		}
		switch b := v.(type) {
		case bool:
			return b
		case string:
			return strings.EqualFold(strings.TrimSpace(b), "true")
		}
	}
	return false
}

func timeField(rec extract.Record, aliases []string) time.Time {
	for _, key := range aliases {
		v, ok := rec[key].(string)
		if !ok {
			continue
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return t
			}
		}
	}
	return time.Now().UTC()
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
