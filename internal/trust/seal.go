package trust

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/yndnr/eventlink-go/internal/core/domain"
)

// SealedKeyPEMType is the PEM block type of a password-sealed private key.
const SealedKeyPEMType = "EVENTLINK SEALED KEY"

const (
	saltLength = 16

	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = chacha20poly1305.KeySize
)

// sealKey encrypts a PKCS#8 key. Layout: salt || nonce || ciphertext.
func sealKey(plain, password []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, domain.ErrInvalidArgument.WithDetails("identity password is empty")
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	aead, err := chacha20poly1305.New(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, saltLength+len(nonce)+len(plain)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plain, []byte(SealedKeyPEMType)), nil
}

// openKey reverses sealKey.
func openKey(sealed, password []byte) ([]byte, error) {
	if len(sealed) < saltLength+chacha20poly1305.NonceSize {
		return nil, domain.ErrIdentitySealed.WithDetails("sealed key is truncated")
	}
	salt := sealed[:saltLength]
	nonce := sealed[saltLength : saltLength+chacha20poly1305.NonceSize]
	body := sealed[saltLength+chacha20poly1305.NonceSize:]

	aead, err := chacha20poly1305.New(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	plain, err := aead.Open(nil, nonce, body, []byte(SealedKeyPEMType))
	if err != nil {
		return nil, domain.ErrIdentitySealed.WithDetails("wrong password or corrupted key")
	}
	return plain, nil
}

func deriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}
