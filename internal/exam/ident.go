package exam

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SlugLength is the number of hex characters in a public exam slug.
const SlugLength = 8

// NewSlug digests 16 random bytes and keeps the first SlugLength hex chars.
// Uniqueness is enforced by the store's slug index, not here.
func NewSlug() (string, error) {
	seed := make([]byte, 16)
	if _, err := rand.Read(seed); err != nil {
		return "", fmt.Errorf("failed to generate slug seed: %w", err)
	}
	sum := sha1.Sum(seed)
	return hex.EncodeToString(sum[:])[:SlugLength], nil
}

// ParseID validates a caller-supplied exam identifier before any store call.
func ParseID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidIdentifier, raw)
	}
	return id, nil
}
