// Package rates implements exchange-rate credential custody and the
// twice-daily rate refresh scheduler.
package rates

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
)

const keyBits = 2048

// KeyStore holds the RSA keypair used to receive the exchange-rate API key.
// Browsers encrypt the key client-side with the public JWK; only ciphertext
// crosses the wire and only this process can open it.
type KeyStore struct {
	private *rsa.PrivateKey
}

// LoadKeys returns the persisted keypair, generating and persisting a fresh
// 2048-bit one on first run. The keypair survives restarts so previously
// stored ciphertext stays decryptable.
func LoadKeys(ctx context.Context, repo Repository) (*KeyStore, error) {
	_, privatePEM, err := repo.GetKeyPair(ctx)
	if err == nil {
		private, err := parsePrivatePEM(privatePEM)
		if err != nil {
			return nil, fmt.Errorf("parse persisted private key: %w", err)
		}
		return &KeyStore{private: private}, nil
	}
	if !errors.Is(err, ErrNoKeyPair) {
		return nil, fmt.Errorf("load keypair: %w", err)
	}

	private, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}

	pubPEM, privPEM, err := encodePEM(private)
	if err != nil {
		return nil, err
	}
	if err := repo.SaveKeyPair(ctx, pubPEM, privPEM); err != nil {
		return nil, fmt.Errorf("persist keypair: %w", err)
	}

	slog.Info("generated exchange rate keypair", "bits", keyBits)
	return &KeyStore{private: private}, nil
}

func encodePEM(private *rsa.PrivateKey) (publicPEM, privatePEM string, err error) {
	privDER, err := x509.MarshalPKCS8PrivateKey(private)
	if err != nil {
		return "", "", fmt.Errorf("marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&private.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("marshal public key: %w", err)
	}

	privatePEM = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}))
	publicPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	return publicPEM, privatePEM, nil
}

func parsePrivatePEM(raw string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	private, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unexpected key type %T", key)
	}
	return private, nil
}

// JWK is the public key in JSON Web Key form, consumable by Web Crypto's
// importKey for RSA-OAEP.
type JWK struct {
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// PublicJWK exports the public key as a JWK.
func (k *KeyStore) PublicJWK() JWK {
	pub := &k.private.PublicKey
	return JWK{
		Kty: "RSA",
		Alg: "RSA-OAEP-256",
		Use: "enc",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// Decrypt opens base64-encoded RSA-OAEP(SHA-256) ciphertext. All failure
// modes collapse into ErrDecryptionFailed; the underlying cause is logged,
// not returned, so key material details never reach callers.
func (k *KeyStore) Decrypt(encrypted string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		slog.Debug("credential ciphertext is not valid base64", "error", err)
		return "", ErrDecryptionFailed
	}

	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, k.private, ciphertext, nil)
	if err != nil {
		slog.Debug("credential decryption failed", "error", err)
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// Encrypt is the inverse of Decrypt with the same parameters. Used by tests
// and local tooling; production ciphertext comes from the browser.
func (k *KeyStore) Encrypt(plaintext string) (string, error) {
	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, &k.private.PublicKey, []byte(plaintext), nil)
	if err != nil {
		return "", fmt.Errorf("encrypt credential: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}
