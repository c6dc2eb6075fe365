// Package vault seals and opens backup documents with a user passphrase.
// The key is derived with PBKDF2-SHA256 and the payload sealed with AES-GCM;
// the output is a single base64 string carrying salt, nonce and ciphertext.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLen    = 16
	keyLen     = 32
	iterations = 120_000
)

// ErrBadPassphraseOrCiphertext is returned when a blob cannot be opened,
// deliberately without distinguishing a wrong passphrase from corrupt data.
var ErrBadPassphraseOrCiphertext = errors.New("vault: wrong passphrase or malformed ciphertext")

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, iterations, keyLen, sha256.New)
}

// Seal encrypts plaintext under the passphrase.
func Seal(passphrase string, plaintext []byte) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("vault: salt: %w", err)
	}
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return "", fmt.Errorf("vault: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("vault: gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: nonce: %w", err)
	}

	blob := make([]byte, 0, saltLen+len(nonce)+len(plaintext)+gcm.Overhead())
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = gcm.Seal(blob, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Open decrypts a blob produced by Seal. Any failure comes back as
// ErrBadPassphraseOrCiphertext.
func Open(passphrase, blob string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, ErrBadPassphraseOrCiphertext
	}
	if len(raw) < saltLen {
		return nil, ErrBadPassphraseOrCiphertext
	}
	salt, rest := raw[:saltLen], raw[saltLen:]

	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, ErrBadPassphraseOrCiphertext
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrBadPassphraseOrCiphertext
	}
	if len(rest) < gcm.NonceSize() {
		return nil, ErrBadPassphraseOrCiphertext
	}
	nonce, ct := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrBadPassphraseOrCiphertext
	}
	return plaintext, nil
}
