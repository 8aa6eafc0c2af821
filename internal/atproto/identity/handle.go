// Package identity provides handle normalization and AT-URI parsing.
// Handles are DNS-style aliases; DIDs are the stable actor keys. Everything
// user-typed goes through NormalizeHandle before it reaches the wire.
package identity

import (
	"strings"

	"Skymarshal/pkg/errors"
)

// DefaultHandleSuffix is appended to bare handles with no domain part.
const DefaultHandleSuffix = ".bsky.social"

// NormalizeHandle canonicalizes a user-supplied handle:
// trim whitespace, strip a single leading "@", convert any remaining "@"
// to ".", and append the default suffix when no dot remains.
// The function is idempotent: NormalizeHandle(NormalizeHandle(h)) == NormalizeHandle(h).
func NormalizeHandle(raw string) string {
	h := strings.TrimSpace(raw)
	h = strings.TrimPrefix(h, "@")
	h = strings.ReplaceAll(h, "@", ".")
	if h != "" && !strings.Contains(h, ".") {
		h += DefaultHandleSuffix
	}
	return strings.ToLower(h)
}

// ValidateHandle normalizes raw and rejects degenerate inputs such as "@",
// ".", or anything producing an empty label.
func ValidateHandle(raw string) (string, error) {
	h := NormalizeHandle(raw)
	if h == "" {
		return "", errors.New(errors.Validation, "handle is empty")
	}
	for _, label := range strings.Split(h, ".") {
		if label == "" {
			return "", errors.Newf(errors.Validation, "invalid handle %q", raw)
		}
	}
	return h, nil
}

// IsDID reports whether the actor reference is a DID rather than a handle.
func IsDID(actor string) bool {
	return strings.HasPrefix(actor, "did:")
}
