package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/postcomb/postcomb/app/database"
)

// Extractor turns a fetched document into candidate items. Implementations
// exist per extraction method (rss, css, article).
type Extractor interface {
	Extract(data []byte, src *database.ContentSource) ([]Candidate, error)
}

func ForMethod(method string) (Extractor, error) {
	switch method {
	case "rss":
		return NewRSSExtractor(), nil
	case "css":
		return NewCSSExtractor(), nil
	case "article":
		return NewArticleExtractor(), nil
	default:
		return nil, fmt.Errorf("unknown extraction method: %s", method)
	}
}

// DeriveExternalID builds a deterministic dedup key for providers that do
// not supply one, so re-fetches of the same article are idempotent.
func DeriveExternalID(url, title string) string {
	hash := sha256.Sum256([]byte(url + "|" + title))
	return hex.EncodeToString(hash[:])
}
