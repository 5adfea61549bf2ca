package chunker

import (
	"regexp"
	"strings"
)

// Section heading patterns, highest priority first. The first pattern
// that matches anywhere in the chunk wins; no match means no section.
var sectionPatterns = []*regexp.Regexp{
	// Markdown-style header: "## Fundamental Rights"
	regexp.MustCompile(`(?m)^#{1,6}[ \t]+(.+?)[ \t]*$`),
	// Capitalized label line: "Preamble:"
	regexp.MustCompile(`(?m)^([A-Z][A-Za-z0-9 '\-]{2,60}):[ \t]*$`),
	// Numbered clause header: "1.2 Composition of the Assembly"
	regexp.MustCompile(`(?m)^(\d+(?:\.\d+)*[ \t]+[A-Z].{2,80}?)[ \t]*$`),
	// Bare all-title-case line: "PART II ORGANIZATION"
	regexp.MustCompile(`(?m)^([A-Z][A-Z0-9 ,'\-]{4,80})[ \t]*$`),
}

// Timestamp patterns, highest priority first.
var timestampPatterns = []*regexp.Regexp{
	// ISO date: 2024-03-15
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
	// Slash or dash numeric date: 15/03/2024, 3-15-24
	regexp.MustCompile(`\b\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}\b`),
	// Month-name date: March 15, 2024 / 15 March 2024
	regexp.MustCompile(`\b(?:(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4}|\d{1,2}\s+(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{4})\b`),
	// Clock time: 14:30, 2:30:05 PM
	regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?(?:\s*(?:AM|PM|am|pm))?\b`),
}

// detectSection returns the first section heading found in content, in
// pattern priority order, or "" when nothing matches.
func detectSection(content string) string {
	for _, p := range sectionPatterns {
		m := p.FindStringSubmatch(content)
		if m == nil {
			continue
		}
		heading := strings.TrimSpace(m[1])
		if heading != "" {
			return heading
		}
	}
	return ""
}

// detectTimestamp returns the first date/time token found in content, in
// pattern priority order, or "" when nothing matches.
func detectTimestamp(content string) string {
	for _, p := range timestampPatterns {
		if m := p.FindString(content); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}
