package source

import (
	"strings"
	"testing"

	"github.com/postcomb/postcomb/app/database"
)

const sampleHTML = `<!DOCTYPE html>
<html>
<body>
  <div class="news">
    <article class="story">
      <h2 class="headline">Market rally continues</h2>
      <a href="/stories/market-rally">Read more</a>
      <p class="teaser">Stocks climbed for a third day.</p>
      <img src="/img/rally.jpg">
    </article>
    <article class="story">
      <h2 class="headline">New datacenter announced</h2>
      <a href="https://other.example.org/dc">Read more</a>
      <p class="teaser">Construction starts next year.</p>
    </article>
    <article class="story"></article>
  </div>
</body>
</html>`

func cssSource() *database.ContentSource {
	return &database.ContentSource{
		URL:              "https://news.example.com/latest",
		ExtractionMethod: "css",
		ItemSelector:     "article.story",
		TitleSelector:    "h2.headline",
		SummarySelector:  "p.teaser",
	}
}

func TestCSSExtractor_Extract(t *testing.T) {
	extractor := NewCSSExtractor()

	candidates, err := extractor.Extract([]byte(sampleHTML), cssSource())
	if err == nil {
		t.Error("Expected partial error for the empty article element")
	}

	if len(candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(candidates))
	}

	first := candidates[0]
	if first.Title != "Market rally continues" {
		t.Errorf("Unexpected title: %s", first.Title)
	}
	if first.URL != "https://news.example.com/stories/market-rally" {
		t.Errorf("Relative link should resolve against the source URL, got %s", first.URL)
	}
	if first.Summary != "Stocks climbed for a third day." {
		t.Errorf("Unexpected summary: %s", first.Summary)
	}
	if !strings.HasPrefix(first.ImageURL, "https://news.example.com/") {
		t.Errorf("Relative image should resolve against the source URL, got %s", first.ImageURL)
	}

	second := candidates[1]
	if second.URL != "https://other.example.org/dc" {
		t.Errorf("Absolute link should pass through, got %s", second.URL)
	}

	if first.ExternalID == second.ExternalID {
		t.Error("Distinct items should derive distinct external ids")
	}
}

func TestCSSExtractor_MissingSelector(t *testing.T) {
	extractor := NewCSSExtractor()
	src := &database.ContentSource{URL: "https://news.example.com"}

	_, err := extractor.Extract([]byte(sampleHTML), src)
	if err == nil {
		t.Error("Expected error when item selector is not configured")
	}
}

func TestCSSExtractor_NoMatches(t *testing.T) {
	extractor := NewCSSExtractor()
	src := cssSource()
	src.ItemSelector = "div.missing"

	candidates, err := extractor.Extract([]byte(sampleHTML), src)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("Expected no candidates, got %d", len(candidates))
	}
}
