package rates

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadKeysGeneratesOnce(t *testing.T) {
	repo := newFakeRepo()

	ks, err := LoadKeys(context.Background(), repo)
	require.NoError(t, err)
	require.NotNil(t, ks)
	require.NotEmpty(t, repo.privatePEM)

	firstPEM := repo.privatePEM

	// Second load must reuse the persisted keypair, not generate a new one.
	ks2, err := LoadKeys(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, firstPEM, repo.privatePEM)

	ciphertext, err := ks.Encrypt("round-trip")
	require.NoError(t, err)
	plaintext, err := ks2.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "round-trip", plaintext)
}

func TestDecryptRoundTrip(t *testing.T) {
	ks, err := LoadKeys(context.Background(), newFakeRepo())
	require.NoError(t, err)

	ciphertext, err := ks.Encrypt("sk-live-0123456789")
	require.NoError(t, err)

	plaintext, err := ks.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "sk-live-0123456789", plaintext)
}

func TestDecryptWrongKey(t *testing.T) {
	ks1, err := LoadKeys(context.Background(), newFakeRepo())
	require.NoError(t, err)
	ks2, err := LoadKeys(context.Background(), newFakeRepo())
	require.NoError(t, err)

	ciphertext, err := ks1.Encrypt("secret")
	require.NoError(t, err)

	_, err = ks2.Decrypt(ciphertext)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecryptMalformedInput(t *testing.T) {
	ks, err := LoadKeys(context.Background(), newFakeRepo())
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
	}{
		{name: "not base64", input: "%%%not-base64%%%"},
		{name: "empty", input: ""},
		{name: "valid base64, garbage ciphertext", input: "aGVsbG8gd29ybGQ="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ks.Decrypt(tt.input)
			assert.ErrorIs(t, err, ErrDecryptionFailed)
		})
	}
}

func TestPublicJWK(t *testing.T) {
	ks, err := LoadKeys(context.Background(), newFakeRepo())
	require.NoError(t, err)

	jwk := ks.PublicJWK()
	assert.Equal(t, "RSA", jwk.Kty)
	assert.Equal(t, "RSA-OAEP-256", jwk.Alg)
	assert.Equal(t, "enc", jwk.Use)
	assert.NotEmpty(t, jwk.N)
	assert.Equal(t, "AQAB", jwk.E) // 65537
}
