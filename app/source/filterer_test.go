package source

import (
	"testing"

	"github.com/postcomb/postcomb/app/database"
)

func TestFilterer_NoFilters(t *testing.T) {
	filterer := NewFilterer()
	src := &database.ContentSource{}

	excluded, reason := filterer.Run(Candidate{Title: "Anything goes"}, src)

	if excluded {
		t.Errorf("Candidate should not be excluded without filters, reason: %s", reason)
	}
}

func TestFilterer_ExcludeKeyword(t *testing.T) {
	filterer := NewFilterer()
	src := &database.ContentSource{
		ExcludeKeywords: []string{"advertisement", "sponsored"},
	}

	excluded, reason := filterer.Run(Candidate{
		Title:   "Sponsored: buy our product",
		Summary: "A great deal",
	}, src)

	if !excluded {
		t.Error("Candidate with excluded keyword should be dropped")
	}
	if reason == "" {
		t.Error("Exclusion should carry a reason")
	}

	excluded, _ = filterer.Run(Candidate{Title: "Regular news story"}, src)
	if excluded {
		t.Error("Candidate without excluded keywords should pass")
	}
}

func TestFilterer_IncludeKeywords(t *testing.T) {
	filterer := NewFilterer()
	src := &database.ContentSource{
		IncludeKeywords: []string{"kubernetes", "docker"},
	}

	excluded, _ := filterer.Run(Candidate{
		Title:   "Weather report",
		Content: "Sunny all week",
	}, src)
	if !excluded {
		t.Error("Candidate matching no include keyword should be dropped")
	}

	excluded, _ = filterer.Run(Candidate{
		Title:   "Kubernetes 2.0 released",
		Content: "The release notes mention...",
	}, src)
	if excluded {
		t.Error("Candidate matching an include keyword should pass")
	}
}

func TestFilterer_CaseFolding(t *testing.T) {
	filterer := NewFilterer()
	src := &database.ContentSource{
		IncludeKeywords: []string{"GoLang"},
	}

	excluded, _ := filterer.Run(Candidate{Title: "Why GOLANG is everywhere"}, src)
	if excluded {
		t.Error("Keyword matching should be case-insensitive")
	}
}

func TestFilterer_Categories(t *testing.T) {
	filterer := NewFilterer()
	src := &database.ContentSource{
		Categories: []string{"tech"},
	}

	excluded, _ := filterer.Run(Candidate{
		Title:      "Story",
		Categories: []string{"sports", "Tech"},
	}, src)
	if excluded {
		t.Error("Candidate sharing a category should pass")
	}

	excluded, _ = filterer.Run(Candidate{
		Title:      "Story",
		Categories: []string{"sports"},
	}, src)
	if !excluded {
		t.Error("Candidate sharing no category should be dropped")
	}

	// Candidates without category metadata are not penalized
	excluded, _ = filterer.Run(Candidate{Title: "Story"}, src)
	if excluded {
		t.Error("Candidate without categories should pass")
	}
}

func TestFilterer_MatchedKeywords(t *testing.T) {
	filterer := NewFilterer()
	src := &database.ContentSource{
		IncludeKeywords: []string{"kubernetes", "docker", "terraform"},
	}

	matched := filterer.MatchedKeywords(Candidate{
		Title:   "Kubernetes and Docker in production",
		Content: "No mention of the third keyword",
	}, src)

	if len(matched) != 2 {
		t.Fatalf("Expected 2 matched keywords, got %d: %v", len(matched), matched)
	}
	if matched[0] != "kubernetes" || matched[1] != "docker" {
		t.Errorf("Unexpected matched keywords: %v", matched)
	}
}
