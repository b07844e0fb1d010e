package speech

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const keySeparator = "||"

// DeriveCacheKey returns the hex SHA-256 of text, sentences, voice and format
// joined by "||". The sentence split is part of the key, so the same text
// split differently is cached separately.
func DeriveCacheKey(text string, sentences []string, voice Voice, format Format) string {
	var b strings.Builder
	b.WriteString(text)
	b.WriteString(keySeparator)
	b.WriteString(strings.Join(sentences, keySeparator))
	b.WriteString(keySeparator)
	b.WriteString(string(voice))
	b.WriteString(keySeparator)
	b.WriteString(string(format))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
