package source

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/postcomb/postcomb/app/database"
)

var _ Extractor = (*RSSExtractor)(nil)

type RSSExtractor struct {
	parser *gofeed.Parser
}

func NewRSSExtractor() *RSSExtractor {
	return &RSSExtractor{
		parser: gofeed.NewParser(),
	}
}

func (e *RSSExtractor) Extract(data []byte, src *database.ContentSource) ([]Candidate, error) {
	feed, err := e.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	candidates := make([]Candidate, 0, len(feed.Items))
	var malformed int
	for _, item := range feed.Items {
		if item == nil || (item.Title == "" && item.Link == "") {
			malformed++
			continue
		}
		candidates = append(candidates, e.normalizeItem(item))
	}

	if malformed > 0 {
		// Partial extraction: parsed items are still returned
		return candidates, fmt.Errorf("%d of %d feed entries were malformed", malformed, len(feed.Items))
	}

	return candidates, nil
}

func (e *RSSExtractor) normalizeItem(item *gofeed.Item) Candidate {
	c := Candidate{
		ExternalID: cmp.Or(item.GUID, DeriveExternalID(item.Link, item.Title)),
		Title:      item.Title,
		Summary:    item.Description,
		Content:    cmp.Or(item.Content, item.Description),
		URL:        item.Link,
		Author:     extractAuthor(item),
	}

	if item.PublishedParsed != nil {
		c.PublishedAt = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		c.PublishedAt = item.UpdatedParsed
	}

	if item.Image != nil {
		c.ImageURL = item.Image.URL
	}

	if item.Categories != nil {
		c.Categories = item.Categories
	}

	return c
}

func extractAuthor(item *gofeed.Item) string {
	var names []string
	for _, author := range item.Authors {
		if author == nil {
			continue
		}
		if author.Name != "" {
			names = append(names, author.Name)
		} else if author.Email != "" {
			names = append(names, author.Email)
		}
	}
	return strings.Join(names, ", ")
}
