// Package classify matches articles against the keyword-cluster taxonomy.
// Two modes exist: a cheap synchronous substring match used during
// ingestion, and an LLM-assisted pass used for the persisted backlog, whose
// response goes through the same structured-extraction chain as discovery.
package classify

import (
	"context"
	"fmt"
	"strings"

	"newsradar/internal/core"
	"newsradar/internal/extract"
	"newsradar/internal/llm"
)

// InlineConfidence is the placeholder confidence for inline matches; the
// substring mode computes no real score.
const InlineConfidence = 0.5

// MatchInline classifies by case-insensitive keyword containment against the
// candidate's title and summary. Every cluster with at least one keyword hit
// is collected.
func MatchInline(candidate core.CandidateArticle, clusters []core.Cluster) core.ClassificationResult {
	text := strings.ToLower(candidate.Title + " " + candidate.Summary)

	var matched []string
	for _, cluster := range clusters {
		for _, keyword := range cluster.Keywords {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword == "" {
				continue
			}
			if strings.Contains(text, keyword) {
				matched = append(matched, cluster.Label())
				break
			}
		}
	}

	result := core.ClassificationResult{MatchedClusters: matched}
	if len(matched) > 0 {
		result.ConfidenceScore = InlineConfidence
	}
	return result
}

// Classifier runs the LLM-assisted mode.
type Classifier struct {
	provider llm.Provider
	opts     llm.Options
}

// NewClassifier creates an LLM-assisted classifier. The provider is usually
// wrapped for usage telemetry.
func NewClassifier(provider llm.Provider, opts llm.Options) *Classifier {
	return &Classifier{provider: provider, opts: opts}
}

// Classify analyzes one persisted article against the taxonomy snapshot. It
// returns the classification plus any free-text keywords the model extracted.
//
// A provider failure is an error (the item failed and can be retried in a
// later run). A response that parses to nothing is not: it yields an
// explicit inconclusive result so "attempted but inconclusive" stays
// distinguishable from "never attempted".
func (c *Classifier) Classify(ctx context.Context, article core.Article, clusters []core.Cluster) (core.ClassificationResult, []string, error) {
	prompt := buildPrompt(article, clusters)

	response, _, err := c.provider.GenerateText(ctx, prompt, c.opts)
	if err != nil {
		return core.ClassificationResult{}, nil, fmt.Errorf("classification call failed: %w", err)
	}

	obj, ok := extract.Object(response)
	if !ok {
		return Inconclusive("no parseable classification in model response"), nil, nil
	}

	return parseResult(obj, clusters)
}

// Inconclusive builds the explicit "attempted but could not classify"
// result that is persisted instead of leaving an item silently retryable
// forever.
func Inconclusive(reason string) core.ClassificationResult {
	return core.ClassificationResult{
		MatchedClusters: []string{},
		ConfidenceScore: 0,
		Rationale:       "could not classify: " + reason,
	}
}

// buildPrompt embeds the formatted taxonomy and the article text.
func buildPrompt(article core.Article, clusters []core.Cluster) string {
	var sb strings.Builder

	sb.WriteString("You are a news classification assistant for an editorial team.\n")
	sb.WriteString("Classify the article below against the available topic clusters.\n\n")

	sb.WriteString("ARTICLE:\n")
	sb.WriteString("Title: ")
	sb.WriteString(article.Title)
	sb.WriteString("\n")
	if article.Source != "" {
		sb.WriteString("Source: ")
		sb.WriteString(article.Source)
		sb.WriteString("\n")
	}
	summary := article.Summary
	if len(summary) > 2000 {
		summary = summary[:2000] + "..."
	}
	sb.WriteString("Summary: ")
	sb.WriteString(summary)
	sb.WriteString("\n\n")

	sb.WriteString("AVAILABLE CLUSTERS:\n")
	for i, cluster := range clusters {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, cluster.Label()))
		if len(cluster.Keywords) > 0 {
			sb.WriteString(fmt.Sprintf("   Keywords: %s\n", strings.Join(cluster.Keywords, ", ")))
		}
	}
	sb.WriteString("\n")

	sb.WriteString("Respond with a single JSON object, no other text:\n")
	sb.WriteString(`{"matched_clusters": ["Primary: Sub", ...], "confidence_score": 0.0-1.0, "rationale": "one sentence", "keywords": ["free-text keywords found in the article"]}`)
	sb.WriteString("\n\nUse the exact cluster labels from the list. An empty matched_clusters list is a valid answer.\n")

	return sb.String()
}

// parseResult maps the extracted object onto a ClassificationResult,
// keeping only cluster labels that exist in the snapshot.
func parseResult(obj extract.Record, clusters []core.Cluster) (core.ClassificationResult, []string, error) {
	known := make(map[string]string, len(clusters))
	for _, cluster := range clusters {
		known[strings.ToLower(cluster.Label())] = cluster.Label()
	}

	var matched []string
	if list, ok := obj["matched_clusters"].([]any); ok {
		for _, item := range list {
			label, ok := item.(string)
			if !ok {
				continue
			}
			if canonical, ok := known[strings.ToLower(strings.TrimSpace(label))]; ok {
				matched = append(matched, canonical)
			}
		}
	}

	confidence := 0.0
	if v, ok := obj["confidence_score"].(float64); ok {
		confidence = v
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
	}

	rationale, _ := obj["rationale"].(string)

	var keywords []string
	if list, ok := obj["keywords"].([]any); ok {
		for _, item := range list {
			if kw, ok := item.(string); ok && strings.TrimSpace(kw) != "" {
				keywords = append(keywords, strings.TrimSpace(kw))
			}
		}
	}

	result := core.ClassificationResult{
		MatchedClusters: matched,
		ConfidenceScore: confidence,
		Rationale:       rationale,
	}
	return result, keywords, nil
}
