package jwt

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// MinSecretLength is the minimum signing secret length in bytes.
const MinSecretLength = 64

// ErrWeakSecret is returned for signing secrets that are too short or still
// carry a documented placeholder.
var ErrWeakSecret = errors.New("weak signing secret")

var placeholderMarkers = []string{
	"change-in-production",
	"change_in_production",
	"changeme",
}

// ValidateSigningSecret fails unless secret is at least MinSecretLength bytes
// and contains no known placeholder marker.
func ValidateSigningSecret(secret string) error {
	if len(secret) < MinSecretLength {
		return fmt.Errorf("%w: must be at least %d characters, got %d", ErrWeakSecret, MinSecretLength, len(secret))
	}
	if marker, ok := placeholderIn(secret); ok {
		return fmt.Errorf("%w: contains placeholder marker %q", ErrWeakSecret, marker)
	}
	return nil
}

// HasPlaceholder reports whether secret still carries a placeholder marker.
func HasPlaceholder(secret string) bool {
	_, ok := placeholderIn(secret)
	return ok
}

func placeholderIn(secret string) (string, bool) {
	lower := strings.ToLower(secret)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return marker, true
		}
	}
	return "", false
}

// GenerateSecret returns a random signing secret of 64 bytes encoded as
// unpadded base64url, which always passes ValidateSigningSecret.
func GenerateSecret() (string, error) {
	raw := make([]byte, 64)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
