package source

import (
	"time"
)

// Candidate is one piece of content extracted from a fetched source, before
// dedup, filtering and scoring.
type Candidate struct {
	ExternalID  string
	Title       string
	Content     string
	Summary     string
	URL         string
	ImageURL    string
	Author      string
	PublishedAt *time.Time
	Categories  []string
}
