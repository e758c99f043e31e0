package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// chunkIDNamespace scopes the deterministic chunk UUIDs.
var chunkIDNamespace = uuid.MustParse("8f41e8a2-7c51-4a7e-9d15-3b6f0e2a9c44")

// ContentHashPolicy computes stable identifiers from document content, so
// re-ingesting an unchanged document is fully idempotent: same content,
// same hash, same chunk IDs.
type ContentHashPolicy interface {
	// DocumentHash returns the SHA-256 hash of the normalized title and body.
	DocumentHash(title, body string) string

	// ChunkID returns a deterministic UUID for a chunk, derived from its
	// source, position, and text.
	ChunkID(sourceURI string, ordinal int, text string) string
}

type contentHashPolicy struct{}

func NewContentHashPolicy() ContentHashPolicy {
	return contentHashPolicy{}
}

func (contentHashPolicy) DocumentHash(title, body string) string {
	// Null-byte separator keeps ("AB","") and ("A","B") distinct.
	content := strings.TrimSpace(title) + "\x00" + strings.TrimSpace(body)
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

func (contentHashPolicy) ChunkID(sourceURI string, ordinal int, text string) string {
	data := fmt.Sprintf("%s\x00%d\x00%s", sourceURI, ordinal, text)
	return uuid.NewSHA1(chunkIDNamespace, []byte(data)).String()
}
