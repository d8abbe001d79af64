package segment

import (
	"regexp"
	"strings"
)

// DefaultLabel names content that precedes the first detected heading.
const DefaultLabel = "General"

// Section is one named slice of a larger text.
type Section struct {
	Label   string
	Content string
}

// headingRe matches a line that opens a new section: an optional numbered,
// lettered, chapter-style, or markdown prefix, then a short label ending in
// colon-like punctuation. Word characters include CJK so Japanese documents
// segment the same way as Latin ones.
var headingRe = regexp.MustCompile(`^(?:\d+[.)]\s*|第\d+[章節]\s*|[#*]+\s*)?[\p{L}\p{N}][\p{L}\p{N}\s]{0,58}[：:。、．]$`)

// IsHeading reports whether a trimmed line should be treated as a section
// heading.
func IsHeading(line string) bool {
	return headingRe.MatchString(line)
}

// Split walks text line by line and groups it into labeled sections. Blank
// lines are dropped. The returned slice preserves occurrence order and keeps
// duplicate labels as distinct entries; use Map for a label-keyed lookup view
// where a repeated label overwrites earlier content.
func Split(text string) []Section {
	var (
		out     []Section
		current = DefaultLabel
		body    []string
	)

	flush := func() {
		if len(body) == 0 {
			return
		}
		out = append(out, Section{Label: current, Content: strings.Join(body, "\n")})
		body = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if IsHeading(line) {
			flush()
			current = line
			continue
		}
		body = append(body, line)
	}
	flush()

	return out
}

// Map collapses sections into a label-keyed view. Repeated labels overwrite.
func Map(sections []Section) map[string]string {
	m := make(map[string]string, len(sections))
	for _, s := range sections {
		m[s.Label] = s.Content
	}
	return m
}
