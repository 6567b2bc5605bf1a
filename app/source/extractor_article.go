package source

import (
	"fmt"
	"strings"

	readability "codeberg.org/readeck/go-readability"

	"github.com/postcomb/postcomb/app/database"
)

var _ Extractor = (*ArticleExtractor)(nil)

// ArticleExtractor treats the whole fetched page as a single article and
// pulls the readable content out of it. Used for website sources without
// item-level structure.
type ArticleExtractor struct{}

func NewArticleExtractor() *ArticleExtractor {
	return &ArticleExtractor{}
}

func (e *ArticleExtractor) Extract(data []byte, src *database.ContentSource) ([]Candidate, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(strings.NewReader(string(data)), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to extract content: %w", err)
	}

	if article.Content == "" {
		return nil, fmt.Errorf("no content extracted from HTML data")
	}

	return []Candidate{{
		ExternalID: DeriveExternalID(src.URL, article.Title),
		Title:      article.Title,
		Content:    article.Content,
		URL:        src.URL,
	}}, nil
}
