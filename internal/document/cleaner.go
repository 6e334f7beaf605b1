package document

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/domenicocinque/web-rag/internal/domain"
)

// repeatedLineMaxLen bounds which lines count as repeated chrome. Longer
// repeated lines are kept since they are more likely real content.
const repeatedLineMaxLen = 60

// DefaultBoilerplatePatterns match whole lines of navigation, consent and
// legal chrome. Matching is case-insensitive.
var DefaultBoilerplatePatterns = []string{
	`^(skip to (main )?content|skip navigation|main menu|menu|home|search|log ?in|sign ?in|sign ?up|register|subscribe|close)$`,
	`^(©|\(c\)|copyright\b)`,
	`all rights reserved`,
	`(we use|this (web)?site uses) cookies|accept (all )?cookies|cookie (policy|settings|preferences)`,
	`^(share|share this|share on|follow us)( on)?:?$`,
	`^(previous|next|back to top)( (article|page|post))?$`,
	`^advertisement$`,
	`^(privacy policy|terms of (use|service)|contact us|about us)$`,
}

// Cleaner normalizes whitespace and strips empty, boilerplate and
// repeated short lines. It is deterministic.
type Cleaner struct {
	patterns []*regexp.Regexp
}

// NewCleaner compiles the default patterns plus extra ones.
func NewCleaner(extraPatterns ...string) (*Cleaner, error) {
	all := append(append([]string{}, DefaultBoilerplatePatterns...), extraPatterns...)
	patterns := make([]*regexp.Regexp, 0, len(all))
	for _, p := range all {
		if strings.TrimSpace(p) == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compile boilerplate pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	return &Cleaner{patterns: patterns}, nil
}

// Clean returns text with one line per non-empty content line.
func (c *Cleaner) Clean(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	seen := make(map[string]bool)

	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" || c.isBoilerplate(line) {
			continue
		}

		if len(line) <= repeatedLineMaxLen {
			key := strings.ToLower(line)
			if seen[key] {
				continue
			}
			seen[key] = true
		}

		kept = append(kept, line)
	}

	return strings.Join(kept, "\n")
}

// CleanDocuments cleans each document and drops those left empty.
func (c *Cleaner) CleanDocuments(docs []domain.Document) []domain.Document {
	cleaned := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		doc.Content = c.Clean(doc.Content)
		if doc.Content == "" {
			continue
		}
		cleaned = append(cleaned, doc)
	}
	return cleaned
}

func (c *Cleaner) isBoilerplate(line string) bool {
	for _, re := range c.patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
