package signature

import (
	"github.com/rs/zerolog"
)

// Verifier checks inbound request bodies against the configured shared secrets.
// Previous secrets stay valid while senders rotate to the current one.
type Verifier struct {
	secrets []string
	logger  zerolog.Logger
}

// NewVerifier returns a ConfigurationError when current is empty
func NewVerifier(logger zerolog.Logger, current string, previous ...string) (*Verifier, error) {
	if current == "" {
		return nil, &ConfigurationError{Reason: "shared secret is empty"}
	}

	secrets := []string{current}
	for _, p := range previous {
		if p != "" {
			secrets = append(secrets, p)
		}
	}

	return &Verifier{
		secrets: secrets,
		logger:  logger.With().Str("component", "signature").Logger(),
	}, nil
}

// WithSecret returns a verifier that accepts only secret, keeping the logger.
// Used for tenants that carry their own signing secret.
func (v *Verifier) WithSecret(secret string) *Verifier {
	if secret == "" {
		return v
	}
	return &Verifier{secrets: []string{secret}, logger: v.logger}
}

// Check verifies rawBody against header. Failures are logged with the caller origin.
func (v *Verifier) Check(rawBody []byte, header, origin string) bool {
	sigs := ParseSignatureHeader(header)
	if len(sigs) == 0 {
		v.logger.Warn().
			Str("origin", origin).
			Str("failure", "missing-signature").
			Msg("webhook authentication failed")
		return false
	}

	if !verifyAny(rawBody, sigs, v.secrets) {
		v.logger.Warn().
			Str("origin", origin).
			Str("failure", "invalid-signature").
			Int("body_bytes", len(rawBody)).
			Msg("webhook authentication failed")
		return false
	}
	return true
}
