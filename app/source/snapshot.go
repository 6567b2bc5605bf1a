package source

import (
	"crypto/sha256"
	"encoding/hex"
)

// SnapshotHash fingerprints a fetch result. When the hash matches the
// source's stored snapshot the per-item diff is skipped entirely.
func SnapshotHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
