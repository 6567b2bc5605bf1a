package source

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/postcomb/postcomb/app/database"
)

var _ Extractor = (*CSSExtractor)(nil)

// CSSExtractor scrapes candidate items out of an HTML page using the
// source's configured selectors.
type CSSExtractor struct{}

func NewCSSExtractor() *CSSExtractor {
	return &CSSExtractor{}
}

func (e *CSSExtractor) Extract(data []byte, src *database.ContentSource) ([]Candidate, error) {
	if src.ItemSelector == "" {
		return nil, fmt.Errorf("source has no item selector configured")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	base, _ := url.Parse(src.URL)

	var candidates []Candidate
	var malformed int
	doc.Find(src.ItemSelector).Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Text())
		if src.TitleSelector != "" {
			title = strings.TrimSpace(sel.Find(src.TitleSelector).First().Text())
		}

		link := e.resolveLink(sel, src.LinkSelector, base)

		if title == "" && link == "" {
			malformed++
			return
		}

		summary := ""
		if src.SummarySelector != "" {
			summary = strings.TrimSpace(sel.Find(src.SummarySelector).First().Text())
		}

		imageURL := ""
		if img, ok := sel.Find("img").First().Attr("src"); ok {
			imageURL = resolveURL(base, img)
		}

		candidates = append(candidates, Candidate{
			ExternalID: DeriveExternalID(link, title),
			Title:      title,
			Summary:    summary,
			Content:    summary,
			URL:        link,
			ImageURL:   imageURL,
		})
	})

	if malformed > 0 {
		return candidates, fmt.Errorf("%d elements matched %q but had no title or link", malformed, src.ItemSelector)
	}

	return candidates, nil
}

func (e *CSSExtractor) resolveLink(sel *goquery.Selection, linkSelector string, base *url.URL) string {
	target := sel
	if linkSelector != "" {
		target = sel.Find(linkSelector).First()
	} else if goquery.NodeName(sel) != "a" {
		target = sel.Find("a").First()
	}

	href, ok := target.Attr("href")
	if !ok {
		return ""
	}

	return resolveURL(base, href)
}

func resolveURL(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}
