package rates

import "errors"

var (
	// ErrDecryptionFailed means the submitted ciphertext could not be
	// decrypted with the current private key.
	ErrDecryptionFailed = errors.New("credential decryption failed")

	// ErrNoKeyPair means no RSA keypair has been persisted yet.
	ErrNoKeyPair = errors.New("no keypair persisted")

	// ErrNotConfigured means no tested credential is on file.
	ErrNotConfigured = errors.New("exchange rate credential not configured")

	// ErrCredentialRejected means the provider refused the decrypted key
	// during the connectivity test.
	ErrCredentialRejected = errors.New("credential rejected by provider")
)
