// Package keyvault seals and opens user secrets (bring-your-own AI keys)
// stored by the dashboard. Bundles are base64(JSON{"iv": hex, "data": hex})
// with AES-256-GCM under a PBKDF2-SHA256 derived key.
package keyvault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	DefaultSalt       = "duweku-salt"
	DefaultIterations = 100000
	keyLength         = 32
)

var ErrInvalidBundle = errors.New("invalid encrypted bundle")

type bundle struct {
	IV   string `json:"iv"`
	Data string `json:"data"`
}

type Vault struct {
	key []byte
}

// New derives the vault key from the server secret.
func New(secret, salt string, iterations int) (*Vault, error) {
	if secret == "" {
		return nil, errors.New("encryption secret is empty")
	}
	if salt == "" {
		salt = DefaultSalt
	}
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return &Vault{
		key: pbkdf2.Key([]byte(secret), []byte(salt), iterations, keyLength, sha256.New),
	}, nil
}

func (v *Vault) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (v *Vault) Encrypt(plaintext string) (string, error) {
	gcm, err := v.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	raw, err := json.Marshal(bundle{IV: hex.EncodeToString(nonce), Data: hex.EncodeToString(sealed)})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func (v *Vault) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}

	var b bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}

	nonce, err := hex.DecodeString(b.IV)
	if err != nil {
		return "", fmt.Errorf("%w: iv: %v", ErrInvalidBundle, err)
	}
	data, err := hex.DecodeString(b.Data)
	if err != nil {
		return "", fmt.Errorf("%w: data: %v", ErrInvalidBundle, err)
	}

	gcm, err := v.gcm()
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("%w: iv must be %d bytes", ErrInvalidBundle, gcm.NonceSize())
	}

	plaintext, err := gcm.Open(nil, nonce, data, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}
