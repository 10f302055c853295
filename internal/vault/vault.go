// Package vault encrypts and decrypts user secrets (session strings, bot
// tokens) before they ever touch the document store. The ciphertext layout
// is base64(nonce || tag || ct) with a PBKDF2-derived key, kept stable so
// stored blobs survive a migration.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/pbkdf2"

	"gatewaybot/internal/apperr"
)

const (
	pbkdf2Iterations = 100000
	keyLength        = 16
	nonceLength      = 12
)

// Vault derives a single AES key from the configured master key/salt pair
// and uses it for every encrypt/decrypt call.
type Vault struct {
	key []byte
}

// New derives the AES key once from masterKey/ivKey. Callers keep the
// returned Vault for the lifetime of the process.
func New(masterKey, ivKey string) *Vault {
	key := pbkdf2.Key([]byte(masterKey), []byte(ivKey), pbkdf2Iterations, keyLength, sha256.New)
	return &Vault{key: key}
}

// Encrypt returns base64(nonce || tag || ciphertext) for plain.
func (v *Vault) Encrypt(plain string) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nil, nonce, []byte(plain), nil)
	// crypto/cipher appends the tag to the ciphertext; the stored layout
	// instead places the tag directly after the nonce, so split it back out.
	tagStart := len(sealed) - gcm.Overhead()
	ct := sealed[:tagStart]
	tag := sealed[tagStart:]
	out := make([]byte, 0, nonceLength+len(tag)+len(ct))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ct...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Any tag mismatch or malformed input surfaces as
// apperr.InvalidCiphertext.
func (v *Vault) Decrypt(token string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", apperr.Wrap(apperr.InvalidCiphertext, err)
	}
	if len(raw) < nonceLength+16 {
		return "", apperr.New(apperr.InvalidCiphertext, "ciphertext too short")
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := raw[:nonceLength]
	tag := raw[nonceLength : nonceLength+gcm.Overhead()]
	ct := raw[nonceLength+gcm.Overhead():]

	sealed := make([]byte, 0, len(ct)+len(tag))
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.InvalidCiphertext, err)
	}
	return string(plain), nil
}
