// Package auth issues and checks rater bearer tokens. Tokens are shown to
// the caller once; only their sha256 hash is stored.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

func HashToken(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])
}

// NewToken returns a fresh random bearer token and its hash.
func NewToken() (token, hash string) {
	token = strings.ReplaceAll(uuid.NewString(), "-", "") + strings.ReplaceAll(uuid.NewString(), "-", "")
	return token, HashToken(token)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	return tok, tok != ""
}

type raterKey struct{}

// WithRater stores the authenticated rater id in ctx.
func WithRater(ctx context.Context, raterID string) context.Context {
	return context.WithValue(ctx, raterKey{}, raterID)
}

// RaterFrom returns the rater id stored by WithRater.
func RaterFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(raterKey{}).(string)
	return id, ok && id != ""
}
