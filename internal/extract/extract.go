// Package extract recovers structured records from the free-form text an LLM
// returns. The upstream model is asked for JSON but does not reliably produce
// it, so a fixed, ordered chain of strategies is attempted and the first one
// that parses wins. The fallback path never fails: when nothing parses the
// result is an empty slice.
package extract

import (
	"encoding/json"
	"strings"

	"newsradar/internal/logger"
)

// Record is one loosely-typed record recovered from upstream text. Field
// names are whatever the model produced; normalization happens downstream.
type Record map[string]any

// Container keys under which the model commonly nests the article array.
var containerKeys = []string{"articles", "results", "items", "news"}

// Strategy names, in the order they are attempted.
const (
	strategyDirect     = "direct"
	strategyFence      = "fence"
	strategyBraceSlice = "brace_slice"
	strategyLineScan   = "line_scan"
	strategyMarkdown   = "markdown"
	strategyNone       = "none"
)

// Records parses raw text into a list of records. It tries, in order: a
// direct JSON parse, stripping one fenced code block, slicing between the
// outermost brace/bracket pair, a line-by-line scan for a JSON block, and
// finally a heuristic markdown extractor. Malformed input yields an empty
// slice, never an error.
func Records(raw string) []Record {
	records, strategy := records(raw)
	if strategy == strategyNone {
		logger.Warn("no extraction strategy produced records", "text_length", len(raw))
	} else {
		logger.Debug("extracted records", "strategy", strategy, "count", len(records), "text_length", len(raw))
	}
	return records
}

// records is the instrumented core of Records: it also reports which
// strategy succeeded, which the tests assert on.
func records(raw string) ([]Record, string) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return []Record{}, strategyNone
	}

	if recs, ok := parseRecords(text); ok {
		return recs, strategyDirect
	}

	if stripped, ok := stripCodeFence(text); ok {
		if recs, ok := parseRecords(stripped); ok {
			return recs, strategyFence
		}
	}

	for _, pair := range [][2]byte{{'[', ']'}, {'{', '}'}} {
		if sliced, ok := sliceDelimited(text, pair[0], pair[1]); ok {
			if recs, ok := parseRecords(sliced); ok {
				return recs, strategyBraceSlice
			}
		}
	}

	if block, ok := scanJSONBlock(text); ok {
		if recs, ok := parseRecords(block); ok {
			return recs, strategyLineScan
		}
	}

	if recs := markdownRecords(text); len(recs) > 0 {
		return recs, strategyMarkdown
	}

	return []Record{}, strategyNone
}

// Object parses raw text expected to contain a single JSON object, using the
// same degradation chain minus the markdown heuristic (a classification
// response has no per-article sections to split on). The second return is
// false when nothing parsed.
func Object(raw string) (Record, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, false
	}

	candidates := []string{text}
	if stripped, ok := stripCodeFence(text); ok {
		candidates = append(candidates, stripped)
	}
	if sliced, ok := sliceDelimited(text, '{', '}'); ok {
		candidates = append(candidates, sliced)
	}
	if block, ok := scanJSONBlock(text); ok {
		candidates = append(candidates, block)
	}

	for _, candidate := range candidates {
		var obj map[string]any
		if err := json.Unmarshal([]byte(candidate), &obj); err == nil {
			return Record(obj), true
		}
	}

	logger.Warn("no extraction strategy produced an object", "text_length", len(raw))
	return nil, false
}

// parseRecords attempts a strict JSON parse and accepts the result when the
// document is itself an array of objects, or an object carrying the array
// under one of the known container keys.
func parseRecords(text string) ([]Record, bool) {
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, false
	}

	switch v := parsed.(type) {
	case []any:
		return toRecords(v)
	case map[string]any:
		for _, key := range containerKeys {
			if inner, ok := v[key].([]any); ok {
				return toRecords(inner)
			}
		}
	}
	return nil, false
}

func toRecords(items []any) ([]Record, bool) {
	records := make([]Record, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, Record(obj))
	}
	if len(records) == 0 {
		return nil, false
	}
	return records, true
}

// stripCodeFence removes a single leading/trailing fenced code block marker
// (optionally language-tagged, e.g. ```json). It reports false when the text
// is not fenced.
func stripCodeFence(text string) (string, bool) {
	if !strings.HasPrefix(text, "```") {
		return "", false
	}
	body := text
	if idx := strings.IndexByte(body, '\n'); idx >= 0 {
		body = body[idx+1:] // drop the opening fence line, including any tag
	} else {
		body = strings.TrimPrefix(body, "```")
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body), true
}

// sliceDelimited returns the substring between the first open delimiter and
// the last close delimiter, provided the open precedes the close.
func sliceDelimited(text string, open, close byte) (string, bool) {
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start < 0 || end < 0 || start >= end {
		return "", false
	}
	return text[start : end+1], true
}

// scanJSONBlock walks the text line by line, collecting from the first line
// that trim-starts with an opening delimiter through the first line that
// trim-ends with a closing delimiter while collecting.
func scanJSONBlock(text string) (string, bool) {
	var collected []string
	collecting := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !collecting {
			if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
				collecting = true
				collected = append(collected, line)
				if strings.HasSuffix(trimmed, "}") || strings.HasSuffix(trimmed, "]") {
					break
				}
			}
			continue
		}
		collected = append(collected, line)
		if strings.HasSuffix(trimmed, "}") || strings.HasSuffix(trimmed, "]") {
			break
		}
	}

	if !collecting {
		return "", false
	}
	return strings.Join(collected, "\n"), true
}
