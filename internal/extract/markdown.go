package extract

import (
	"regexp"
	"strings"
)

// Label patterns the markdown heuristic recognizes, case-insensitive. The
// model sometimes answers with "**Title:** ..." prose instead of JSON; each
// heading/bullet-delimited section yields one record when it carries at
// least a title or a url.
var (
	labelPattern = regexp.MustCompile(`(?i)^(?:[-*>\s]*)(?:\*\*)?(title|headline|url|link|summary|description|source)(?:\*\*)?\s*[:：]\s*(.+)$`)
	headingLine  = regexp.MustCompile(`^\s*(?:#{1,6}\s+|\d+\.\s+|[-*]\s+\*\*)`)
	bareURL      = regexp.MustCompile(`https?://[^\s)\]>"']+`)
	mdLink       = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^)]+)\)`)
)

// canonical maps recognized labels onto the field names the normalizer
// accepts.
var canonical = map[string]string{
	"title":       "title",
	"headline":    "title",
	"url":         "url",
	"link":        "url",
	"summary":     "summary",
	"description": "summary",
	"source":      "source",
}

// markdownRecords is the last-resort extractor: it splits prose on heading
// and bold-label boundaries and harvests label:value pairs per section.
func markdownRecords(text string) []Record {
	var records []Record
	current := Record{}

	flush := func() {
		if hasIdentity(current) {
			records = append(records, current)
		}
		current = Record{}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if headingLine.MatchString(line) && hasIdentity(current) {
			flush()
		}

		if m := labelPattern.FindStringSubmatch(trimmed); m != nil {
			field := canonical[strings.ToLower(m[1])]
			value := cleanValue(m[2])
			if field == "url" {
				// Keep only the address itself, however it was wrapped.
				value = bareURL.FindString(m[2])
			}
			if _, exists := current[field]; exists && field == "title" && len(current) > 1 {
				// A second title starts a new section. A lone title is just
				// the section heading repeated as a label, so overwrite it.
				flush()
			}
			if value != "" {
				current[field] = value
			}
			continue
		}

		// Heading lines often carry the title itself, and markdown links
		// carry both a title and a url.
		if m := mdLink.FindStringSubmatch(trimmed); m != nil {
			if hasIdentity(current) {
				flush()
			}
			current["title"] = cleanValue(m[1])
			current["url"] = m[2]
			continue
		}
		if headingLine.MatchString(line) {
			title := strings.TrimLeft(trimmed, "#*- \t")
			title = strings.TrimRight(title, "*")
			if title = cleanValue(title); title != "" {
				current["title"] = title
			}
		}
	}
	flush()

	return records
}

// hasIdentity reports whether a section collected enough to count as a
// record: at least a title or a url.
func hasIdentity(rec Record) bool {
	_, hasTitle := rec["title"]
	_, hasURL := rec["url"]
	return hasTitle || hasURL
}

// cleanValue strips markdown emphasis and link syntax from a captured value,
// keeping the link text for [text](url) forms.
func cleanValue(value string) string {
	value = strings.TrimSpace(value)
	if u := bareURL.FindString(value); u != "" && len(u) == len(value) {
		return u
	}
	if m := mdLink.FindStringSubmatch(value); m != nil {
		value = strings.Replace(value, m[0], m[1], 1)
	}
	value = strings.Trim(value, "*_` ")
	return strings.TrimSpace(value)
}
