package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// HeaderPrefix is the optional algorithm tag in front of a signature
	HeaderPrefix = "sha256="

	// MinSecretBytes is the minimum generated secret size (192 bits)
	MinSecretBytes = 24

	// MaxSecretBytes is the maximum generated secret size (512 bits)
	MaxSecretBytes = 64
)

// ConfigurationError reports a verifier that cannot run, as opposed to a request that failed verification
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("signature configuration: %s", e.Reason)
}

// GenerateSecret creates a random hex-encoded shared secret of size bytes
func GenerateSecret(size int) (string, error) {
	if size < MinSecretBytes || size > MaxSecretBytes {
		return "", fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}

	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Sign returns the lowercase hex HMAC-SHA256 of body keyed with secret
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether header carries the HMAC-SHA256 of rawBody under secret.
// An empty secret is a ConfigurationError; an empty or mismatched header is simply false.
func Verify(rawBody []byte, header, secret string) (bool, error) {
	if secret == "" {
		return false, &ConfigurationError{Reason: "shared secret is empty"}
	}
	return verifyAny(rawBody, ParseSignatureHeader(header), []string{secret}), nil
}

// ParseSignatureHeader splits a header holding one or more space-delimited signatures
// and strips the optional sha256= prefix from each
func ParseSignatureHeader(header string) []string {
	var sigs []string
	for _, part := range strings.Fields(header) {
		part = strings.TrimPrefix(part, HeaderPrefix)
		if part == "" {
			continue
		}
		sigs = append(sigs, strings.ToLower(part))
	}
	return sigs
}

// BuildSignatureHeader builds a header value signing body with every secret
func BuildSignatureHeader(body []byte, secrets ...string) string {
	parts := make([]string, 0, len(secrets))
	for _, s := range secrets {
		parts = append(parts, HeaderPrefix+Sign(body, s))
	}
	return strings.Join(parts, " ")
}

// verifyAny tries every signature against every secret. Each comparison runs in constant
// time and the loop never exits on the first mismatched byte of a candidate.
func verifyAny(rawBody []byte, sigs []string, secrets []string) bool {
	if len(sigs) == 0 {
		return false
	}

	ok := 0
	for _, secret := range secrets {
		expected := []byte(Sign(rawBody, secret))
		for _, sig := range sigs {
			ok |= subtle.ConstantTimeCompare(expected, []byte(sig))
		}
	}
	return ok == 1
}
