package pfm

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Encrypted layout: salt(16) || nonce(12) || ciphertext || tag(16).
// The key is derived from the passphrase with PBKDF2-HMAC-SHA256 and a
// random per-file salt; the iteration count makes derivation
// deliberately expensive. The GCM additional data binds the blob to
// this protocol identifier so it cannot be replayed into another one.
const (
	cryptAAD  = "PFM-ENC/1.0"
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
	kdfIters  = 600_000
)

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, kdfIters, keySize, sha256.New)
}

// Encrypt seals plaintext with AES-256-GCM under a passphrase-derived
// key. Salt and nonce are freshly random for every call.
func Encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	aead, err := newAEAD(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, saltSize+nonceSize+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, []byte(cryptAAD)), nil
}

// Decrypt reverses Encrypt. Any authentication failure (wrong
// passphrase, flipped bit, truncated blob) fails closed with
// ErrDecryptFailed; partial plaintext is never returned.
func Decrypt(blob []byte, passphrase string) ([]byte, error) {
	if len(blob) < saltSize+nonceSize+16 {
		return nil, fmt.Errorf("%w: blob too short", ErrDecryptFailed)
	}
	salt := blob[:saltSize]
	nonce := blob[saltSize : saltSize+nonceSize]
	ciphertext := blob[saltSize+nonceSize:]

	aead, err := newAEAD(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(cryptAAD))
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncryptDocument serializes doc and seals the bytes.
func EncryptDocument(doc *Document, passphrase string, opts ...WriteOption) ([]byte, error) {
	plaintext, err := Serialize(doc, opts...)
	if err != nil {
		return nil, err
	}
	return Encrypt(plaintext, passphrase)
}

// DecryptDocument opens a sealed document and parses it.
func DecryptDocument(blob []byte, passphrase string, opts ...ReadOption) (*Document, error) {
	plaintext, err := Decrypt(blob, passphrase)
	if err != nil {
		return nil, err
	}
	return Parse(plaintext, opts...)
}
