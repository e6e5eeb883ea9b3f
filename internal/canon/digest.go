package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/gowebpki/jcs"
)

// Digest returns the hex SHA-256 of v's canonical JSON: keys normalized as in
// Normalize, then serialized per RFC 8785 (JCS). Two parties holding the same
// record, whatever key casing or number formatting each uses, compute the same digest.
//
// The ledger verification endpoint reports this value as dataHash.
func Digest(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}
	return DigestJSON(raw)
}

// DigestJSON is Digest for a record that is already JSON encoded.
func DigestJSON(data []byte) (string, error) {
	normalized, err := NormalizeJSON(data)
	if err != nil {
		return "", err
	}

	canonical, err := jcs.Transform(normalized)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize record: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
