package source

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/postcomb/postcomb/app/database"
)

// Scorer computes a relevance score in [0.0, 1.0] for a candidate against
// its source configuration. The computation is purely a function of its
// inputs so re-polls reproduce identical scores.
type Scorer struct {
	folder cases.Caser
}

func NewScorer() *Scorer {
	return &Scorer{
		folder: cases.Fold(),
	}
}

// Run scores a candidate. A source without keywords or categories has
// nothing to measure relevance against, so everything it yields scores a
// neutral 0.5. Otherwise: 0.3 base, up to 0.4 for the fraction of include
// keywords matched, 0.1 for a keyword in the title, 0.2 for a category
// match.
func (s *Scorer) Run(c Candidate, src *database.ContentSource) float64 {
	if len(src.IncludeKeywords) == 0 && len(src.Categories) == 0 {
		return 0.5
	}

	score := 0.3

	if len(src.IncludeKeywords) > 0 {
		text := s.folder.String(c.Title + " " + c.Summary + " " + c.Content)
		title := s.folder.String(c.Title)

		matched := 0
		titleMatch := false
		for _, kw := range src.IncludeKeywords {
			folded := s.folder.String(kw)
			if strings.Contains(text, folded) {
				matched++
			}
			if strings.Contains(title, folded) {
				titleMatch = true
			}
		}

		score += 0.4 * float64(matched) / float64(len(src.IncludeKeywords))
		if titleMatch {
			score += 0.1
		}
	}

	if len(src.Categories) > 0 && categoriesOverlap(s.folder, src.Categories, c.Categories) {
		score += 0.2
	}

	if score > 1.0 {
		score = 1.0
	}

	return score
}

func categoriesOverlap(folder cases.Caser, want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if folder.String(w) == folder.String(h) {
				return true
			}
		}
	}
	return false
}
