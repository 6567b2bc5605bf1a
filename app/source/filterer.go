package source

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/postcomb/postcomb/app/database"
)

// Filterer applies a source's include/exclude keyword lists and category
// tags to extracted candidates. Candidates failing the filter are not
// persisted at all, to bound storage growth.
type Filterer struct {
	folder cases.Caser
}

func NewFilterer() *Filterer {
	return &Filterer{
		folder: cases.Fold(),
	}
}

// Run reports whether the candidate should be dropped, with a reason for
// logging.
func (f *Filterer) Run(c Candidate, src *database.ContentSource) (bool, string) {
	text := f.folder.String(c.Title + " " + c.Summary + " " + c.Content)

	for _, exclude := range src.ExcludeKeywords {
		if strings.Contains(text, f.folder.String(exclude)) {
			return true, fmt.Sprintf("excluded keyword '%s'", exclude)
		}
	}

	if len(src.IncludeKeywords) > 0 {
		matched := false
		for _, include := range src.IncludeKeywords {
			if strings.Contains(text, f.folder.String(include)) {
				matched = true
				break
			}
		}
		if !matched {
			return true, fmt.Sprintf("matches none of the include keywords %v", src.IncludeKeywords)
		}
	}

	if len(src.Categories) > 0 && len(c.Categories) > 0 {
		matched := false
		for _, want := range src.Categories {
			for _, have := range c.Categories {
				if f.folder.String(want) == f.folder.String(have) {
					matched = true
					break
				}
			}
		}
		if !matched {
			return true, fmt.Sprintf("categories %v match none of %v", c.Categories, src.Categories)
		}
	}

	return false, ""
}

// MatchedKeywords returns the include keywords found in the candidate text,
// stored on the item for rule filtering.
func (f *Filterer) MatchedKeywords(c Candidate, src *database.ContentSource) []string {
	text := f.folder.String(c.Title + " " + c.Summary + " " + c.Content)

	var matched []string
	for _, include := range src.IncludeKeywords {
		if strings.Contains(text, f.folder.String(include)) {
			matched = append(matched, include)
		}
	}
	return matched
}
