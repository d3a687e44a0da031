package signature

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const knownBody = `{"type":"report.generate"}`

func TestGenerateSecret(t *testing.T) {
	t.Run("success - minimum size", func(t *testing.T) {
		secret, err := GenerateSecret(MinSecretBytes)
		require.NoError(t, err)
		assert.Len(t, secret, MinSecretBytes*2)
	})

	t.Run("error - too small", func(t *testing.T) {
		_, err := GenerateSecret(MinSecretBytes - 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret size must be between")
	})

	t.Run("error - too large", func(t *testing.T) {
		_, err := GenerateSecret(MaxSecretBytes + 1)
		require.Error(t, err)
	})

	t.Run("randomness - generates different secrets", func(t *testing.T) {
		s1, err1 := GenerateSecret(32)
		s2, err2 := GenerateSecret(32)
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.NotEqual(t, s1, s2)
	})
}

func TestSign(t *testing.T) {
	t.Run("success - lowercase hex of 32 bytes", func(t *testing.T) {
		sig := Sign([]byte(knownBody), "topsecret")
		assert.Len(t, sig, 64)
		assert.Equal(t, strings.ToLower(sig), sig)
	})

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, Sign([]byte(knownBody), "topsecret"), Sign([]byte(knownBody), "topsecret"))
	})

	t.Run("different secrets produce different signatures", func(t *testing.T) {
		assert.NotEqual(t, Sign([]byte(knownBody), "a"), Sign([]byte(knownBody), "b"))
	})
}

func TestVerify(t *testing.T) {
	body := []byte(knownBody)
	secret := "topsecret"
	sig := Sign(body, secret)

	t.Run("success - bare hex", func(t *testing.T) {
		ok, err := Verify(body, sig, secret)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("success - sha256 prefix", func(t *testing.T) {
		ok, err := Verify(body, "sha256="+sig, secret)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("success - uppercase hex", func(t *testing.T) {
		ok, err := Verify(body, strings.ToUpper(sig), secret)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("success - one of several signatures matches", func(t *testing.T) {
		header := "sha256=" + Sign(body, "old") + " sha256=" + sig
		ok, err := Verify(body, header, secret)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("error - empty secret is a configuration error", func(t *testing.T) {
		ok, err := Verify(body, sig, "")
		require.Error(t, err)
		assert.False(t, ok)
		var cfgErr *ConfigurationError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("missing header is a failure not an error", func(t *testing.T) {
		ok, err := Verify(body, "", secret)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("wrong secret", func(t *testing.T) {
		ok, err := Verify(body, Sign(body, "other"), secret)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("truncated signature", func(t *testing.T) {
		ok, err := Verify(body, sig[:32], secret)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("any single byte mutation of the body fails", func(t *testing.T) {
		for i := range body {
			mutated := bytes.Clone(body)
			mutated[i] ^= 0x01
			ok, err := Verify(mutated, sig, secret)
			require.NoError(t, err)
			assert.False(t, ok, "mutation at byte %d verified", i)
		}
	})

	t.Run("re-encoded body fails", func(t *testing.T) {
		reencoded := []byte(`{ "type": "report.generate" }`)
		ok, err := Verify(reencoded, sig, secret)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestParseSignatureHeader(t *testing.T) {
	t.Run("empty header", func(t *testing.T) {
		assert.Empty(t, ParseSignatureHeader(""))
		assert.Empty(t, ParseSignatureHeader("   "))
	})

	t.Run("bare prefix is ignored", func(t *testing.T) {
		assert.Empty(t, ParseSignatureHeader("sha256="))
	})

	t.Run("multiple signatures", func(t *testing.T) {
		sigs := ParseSignatureHeader("sha256=AA  bb")
		assert.Equal(t, []string{"aa", "bb"}, sigs)
	})
}

func TestBuildSignatureHeader(t *testing.T) {
	body := []byte(knownBody)
	header := BuildSignatureHeader(body, "current", "previous")

	ok, err := Verify(body, header, "previous")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, ParseSignatureHeader(header), 2)
}

func TestVerifier(t *testing.T) {
	body := []byte(knownBody)

	t.Run("error - empty current secret", func(t *testing.T) {
		_, err := NewVerifier(zerolog.Nop(), "")
		var cfgErr *ConfigurationError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("success - previous secret accepted during rotation", func(t *testing.T) {
		v, err := NewVerifier(zerolog.Nop(), "new", "old")
		require.NoError(t, err)
		assert.True(t, v.Check(body, Sign(body, "new"), "10.0.0.1"))
		assert.True(t, v.Check(body, Sign(body, "old"), "10.0.0.1"))
		assert.False(t, v.Check(body, Sign(body, "other"), "10.0.0.1"))
	})

	t.Run("tenant secret replaces the shared set", func(t *testing.T) {
		v, err := NewVerifier(zerolog.Nop(), "shared")
		require.NoError(t, err)
		tv := v.WithSecret("tenant")
		assert.True(t, tv.Check(body, Sign(body, "tenant"), ""))
		assert.False(t, tv.Check(body, Sign(body, "shared"), ""))
		assert.Same(t, v, v.WithSecret(""))
	})

	t.Run("failure log never carries secret or digest", func(t *testing.T) {
		var buf bytes.Buffer
		v, err := NewVerifier(zerolog.New(&buf), "shared")
		require.NoError(t, err)

		wrong := Sign(body, "other")
		assert.False(t, v.Check(body, wrong, "203.0.113.7"))
		assert.False(t, v.Check(body, "", "203.0.113.7"))

		logged := buf.String()
		assert.Contains(t, logged, "203.0.113.7")
		assert.Contains(t, logged, "invalid-signature")
		assert.Contains(t, logged, "missing-signature")
		assert.NotContains(t, logged, "shared")
		assert.NotContains(t, logged, wrong)
		assert.NotContains(t, logged, Sign(body, "shared"))
	})
}
