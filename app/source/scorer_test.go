package source

import (
	"math"
	"testing"

	"github.com/postcomb/postcomb/app/database"
)

func TestScorer_NeutralWithoutConfig(t *testing.T) {
	scorer := NewScorer()
	src := &database.ContentSource{}

	score := scorer.Run(Candidate{Title: "Anything"}, src)

	if score != 0.5 {
		t.Errorf("Expected neutral 0.5, got %f", score)
	}
}

func TestScorer_Deterministic(t *testing.T) {
	scorer := NewScorer()
	src := &database.ContentSource{
		IncludeKeywords: []string{"kubernetes", "terraform"},
	}
	candidate := Candidate{
		Title:   "Kubernetes release",
		Content: "Details about the kubernetes release.",
	}

	first := scorer.Run(candidate, src)
	for i := 0; i < 10; i++ {
		if got := scorer.Run(candidate, src); got != first {
			t.Fatalf("Score not deterministic: %f vs %f", got, first)
		}
	}
}

func TestScorer_KeywordFraction(t *testing.T) {
	scorer := NewScorer()
	src := &database.ContentSource{
		IncludeKeywords: []string{"kubernetes", "terraform"},
	}

	// One of two keywords matched, keyword also in title:
	// 0.3 + 0.4*(1/2) + 0.1 = 0.6
	score := scorer.Run(Candidate{
		Title:   "Kubernetes release",
		Content: "Details about the release.",
	}, src)
	if math.Abs(score-0.6) > 1e-9 {
		t.Errorf("Expected 0.6, got %f", score)
	}

	// Both keywords matched, none in title:
	// 0.3 + 0.4 = 0.7
	score = scorer.Run(Candidate{
		Title:   "Infrastructure roundup",
		Content: "Covers kubernetes and terraform changes.",
	}, src)
	if math.Abs(score-0.7) > 1e-9 {
		t.Errorf("Expected 0.7, got %f", score)
	}

	// Nothing matched: base only
	score = scorer.Run(Candidate{Title: "Cooking tips"}, src)
	if math.Abs(score-0.3) > 1e-9 {
		t.Errorf("Expected 0.3, got %f", score)
	}
}

func TestScorer_CategoryBonus(t *testing.T) {
	scorer := NewScorer()
	src := &database.ContentSource{
		IncludeKeywords: []string{"kubernetes"},
		Categories:      []string{"tech"},
	}

	// Keyword in title and text, category match:
	// 0.3 + 0.4 + 0.1 + 0.2 = 1.0
	score := scorer.Run(Candidate{
		Title:      "Kubernetes deep dive",
		Categories: []string{"Tech"},
	}, src)
	if math.Abs(score-1.0) > 1e-9 {
		t.Errorf("Expected 1.0, got %f", score)
	}
}

func TestScorer_Clamped(t *testing.T) {
	scorer := NewScorer()
	src := &database.ContentSource{
		IncludeKeywords: []string{"a"},
		Categories:      []string{"tech"},
	}

	score := scorer.Run(Candidate{
		Title:      "a",
		Categories: []string{"tech"},
	}, src)

	if score < 0 || score > 1 {
		t.Errorf("Score out of range: %f", score)
	}
}
