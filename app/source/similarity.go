package source

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/postcomb/postcomb/app/database"
)

// SimilarityStrategy detects near-duplicates of a candidate across the
// owner's other sources. Exact (source, external_id) collisions are handled
// upstream as a plain skip; this is only for cross-source matches, which get
// stored with status duplicate and a pointer to the earlier item.
type SimilarityStrategy interface {
	FindDuplicate(c Candidate, prior []database.MonitoredItem) *database.MonitoredItem
}

var _ SimilarityStrategy = (*TitleSimilarity)(nil)

// TitleSimilarity matches on normalized-title edit distance.
type TitleSimilarity struct {
	// Threshold is the minimum similarity ratio in (0, 1] to call two
	// titles the same story.
	Threshold float64

	folder cases.Caser
}

func NewTitleSimilarity(threshold float64) *TitleSimilarity {
	return &TitleSimilarity{
		Threshold: threshold,
		folder:    cases.Fold(),
	}
}

func (s *TitleSimilarity) FindDuplicate(c Candidate, prior []database.MonitoredItem) *database.MonitoredItem {
	title := s.normalize(c.Title)
	if title == "" {
		return nil
	}

	for i := range prior {
		other := s.normalize(prior[i].Title)
		if other == "" {
			continue
		}

		if s.similarity(title, other) >= s.Threshold {
			return &prior[i]
		}
	}

	return nil
}

func (s *TitleSimilarity) normalize(title string) string {
	return strings.Join(strings.Fields(s.folder.String(title)), " ")
}

func (s *TitleSimilarity) similarity(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 0
	}

	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(longest)
}
