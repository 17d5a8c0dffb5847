// Package gpg seals the persisted session token with an OpenPGP passphrase.
//
// Sealed values are ASCII-armored symmetric PGP messages. Values without the armor
// header are treated as plaintext so a token stored before a passphrase was configured
// still loads.
package gpg

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
)

const armorHeader = "-----BEGIN PGP MESSAGE-----"

// Sentinel errors
var (
	ErrEmptyPassphrase = errors.New("passphrase cannot be empty")
	ErrUnsealFailed    = errors.New("failed to unseal value")
)

// TokenStore persists a single opaque token.
type TokenStore interface {
	LoadToken() (string, error)
	SaveToken(token string) error
	ClearToken() error
}

// Sealer encrypts and decrypts small secrets with a passphrase.
type Sealer struct {
	passphrase []byte
}

// NewSealer creates a Sealer for passphrase.
func NewSealer(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	return &Sealer{passphrase: []byte(passphrase)}, nil
}

// Seal encrypts plaintext and returns an armored PGP message.
func (s *Sealer) Seal(plaintext string) (string, error) {
	message, err := crypto.EncryptMessageWithPassword(crypto.NewPlainMessageFromString(plaintext), s.passphrase)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt: %w", err)
	}
	armored, err := message.GetArmored()
	if err != nil {
		return "", fmt.Errorf("failed to armor message: %w", err)
	}
	return armored, nil
}

// Unseal decrypts an armored PGP message produced by Seal.
func (s *Sealer) Unseal(armored string) (string, error) {
	message, err := crypto.NewPGPMessageFromArmored(armored)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsealFailed, err)
	}
	plain, err := crypto.DecryptMessageWithPassword(message, s.passphrase)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsealFailed, err)
	}
	return plain.GetString(), nil
}

// IsSealed reports whether value looks like an armored PGP message.
func IsSealed(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), armorHeader)
}

// SealedStore wraps a TokenStore so the token is encrypted at rest.
type SealedStore struct {
	inner  TokenStore
	sealer *Sealer
}

// NewSealedStore wraps inner with sealer.
func NewSealedStore(inner TokenStore, sealer *Sealer) *SealedStore {
	return &SealedStore{inner: inner, sealer: sealer}
}

// LoadToken returns the unsealed token. Plaintext values are returned unchanged.
func (s *SealedStore) LoadToken() (string, error) {
	value, err := s.inner.LoadToken()
	if err != nil || value == "" {
		return value, err
	}
	if !IsSealed(value) {
		return value, nil
	}
	return s.sealer.Unseal(value)
}

// SaveToken seals token before storing it.
func (s *SealedStore) SaveToken(token string) error {
	sealed, err := s.sealer.Seal(token)
	if err != nil {
		return err
	}
	return s.inner.SaveToken(sealed)
}

// ClearToken removes the stored token.
func (s *SealedStore) ClearToken() error {
	return s.inner.ClearToken()
}
