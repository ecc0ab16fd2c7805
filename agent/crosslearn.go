package agent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hrygo/hermes/store"
)

// Pattern is a coarse structural feature observed in a high-scoring
// prompt's content (spec §4.5's CROSS_PROMPT_LEARN: "look for structural
// patterns common among the best-performing prompts"). This is a
// read-only audit: patterns are logged/returned, never written back into
// any prompt's content.
type Pattern struct {
	Name  string
	Count int
}

var (
	stepListRe      = regexp.MustCompile(`(?m)^\s*(\d+[.)]|[-*])\s+\S`)
	sectionHeaderRe = regexp.MustCompile(`(?m)^#{1,6}\s+\S|^[A-Z][A-Za-z ]{2,40}:\s*$`)
	exampleRe       = regexp.MustCompile(`(?i)\bexample[s]?\b`)
	placeholderRe   = regexp.MustCompile(`\{\{?\s*\w+\s*\}?\}`)
)

// ExtractPatterns scans prompt content for structural features: numbered
// or bulleted step lists, section headers, worked examples, and variable
// placeholders. Grounded on hermes_agent.py's _extract_patterns, which
// does the same coarse substring/regex scan rather than anything
// model-based.
func ExtractPatterns(prompts []*store.Prompt) []Pattern {
	counts := map[string]int{
		"step-list":       0,
		"section-headers": 0,
		"worked-examples": 0,
		"placeholders":    0,
	}
	for _, p := range prompts {
		if stepListRe.MatchString(p.Content) {
			counts["step-list"]++
		}
		if sectionHeaderRe.MatchString(p.Content) {
			counts["section-headers"]++
		}
		if exampleRe.MatchString(p.Content) {
			counts["worked-examples"]++
		}
		if placeholderRe.MatchString(p.Content) {
			counts["placeholders"]++
		}
	}
	patterns := make([]Pattern, 0, len(counts))
	for name, c := range counts {
		patterns = append(patterns, Pattern{Name: name, Count: c})
	}
	return patterns
}

func summarizePatterns(patterns []Pattern) string {
	var b strings.Builder
	for i, p := range patterns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%d", p.Name, p.Count)
	}
	return b.String()
}
