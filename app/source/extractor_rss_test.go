package source

import (
	"testing"

	"github.com/postcomb/postcomb/app/database"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <link>https://example.com</link>
    <item>
      <guid>https://example.com/post-1</guid>
      <title>First Post</title>
      <link>https://example.com/post-1</link>
      <description>Summary of the first post</description>
      <category>tech</category>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
    </item>
    <item>
      <title>Second Post</title>
      <link>https://example.com/post-2</link>
      <description>Summary of the second post</description>
    </item>
  </channel>
</rss>`

func TestRSSExtractor_Extract(t *testing.T) {
	extractor := NewRSSExtractor()
	src := &database.ContentSource{URL: "https://example.com/feed.xml"}

	candidates, err := extractor.Extract([]byte(sampleRSS), src)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(candidates))
	}

	first := candidates[0]
	if first.ExternalID != "https://example.com/post-1" {
		t.Errorf("Expected GUID as external id, got %s", first.ExternalID)
	}
	if first.Title != "First Post" {
		t.Errorf("Unexpected title: %s", first.Title)
	}
	if first.Summary != "Summary of the first post" {
		t.Errorf("Unexpected summary: %s", first.Summary)
	}
	if len(first.Categories) != 1 || first.Categories[0] != "tech" {
		t.Errorf("Unexpected categories: %v", first.Categories)
	}
	if first.PublishedAt == nil {
		t.Error("Expected published date to be parsed")
	}

	// Item without a GUID falls back to the derived key
	second := candidates[1]
	expected := DeriveExternalID("https://example.com/post-2", "Second Post")
	if second.ExternalID != expected {
		t.Errorf("Expected derived external id %s, got %s", expected, second.ExternalID)
	}
}

func TestRSSExtractor_ExternalIDStable(t *testing.T) {
	extractor := NewRSSExtractor()
	src := &database.ContentSource{URL: "https://example.com/feed.xml"}

	first, err := extractor.Extract([]byte(sampleRSS), src)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	second, err := extractor.Extract([]byte(sampleRSS), src)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	for i := range first {
		if first[i].ExternalID != second[i].ExternalID {
			t.Errorf("External id not stable across re-fetches: %s vs %s",
				first[i].ExternalID, second[i].ExternalID)
		}
	}
}

func TestRSSExtractor_InvalidData(t *testing.T) {
	extractor := NewRSSExtractor()
	src := &database.ContentSource{}

	_, err := extractor.Extract([]byte("this is not xml"), src)
	if err == nil {
		t.Error("Expected error for invalid feed data")
	}
}
