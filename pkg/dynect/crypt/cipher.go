// Package crypt implements the credential box used by sessions to avoid
// holding plaintext passwords in memory. Secrets are encrypted with
// AES-256-GCM under a key derived via HKDF from a caller-supplied passphrase,
// falling back to a fixed internal key when none is given. This obscures the
// password in process memory and crash dumps; it is not a substitute for
// protecting the passphrase itself.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/dynectlabs/dynect-go/pkg/dynect/dynerrors"
)

// defaultKey seeds HKDF when the caller does not supply a key. Matches the
// behavior of sessions constructed without an explicit encryption key.
const defaultKey = "dynect-go.credential-box.v1"

const keySize = 32 // AES-256

var errCipher = dynerrors.ErrSession.New("cipher error")

// Cipher encrypts and decrypts short secrets. A Cipher is immutable and safe
// for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from the given key material. A nil or empty key
// selects the fixed internal key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) == 0 {
		key = []byte(defaultKey)
	}

	derived := make([]byte, keySize)
	kdf := hkdf.New(sha256.New, key, nil, []byte("dynect password encryption"))
	if _, err := io.ReadFull(kdf, derived); err != nil {
		return nil, errCipher.Msg("key derivation failed").Err(err)
	}

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, errCipher.Err(err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errCipher.Err(err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext and returns a base64-encoded nonce||ciphertext
// blob suitable for keeping in a struct field.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errCipher.Msg("nonce generation failed").Err(err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Decryption with a different key fails
// authentication rather than returning garbage.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errCipher.Msg("malformed ciphertext").Err(err)
	}
	if len(raw) < c.aead.NonceSize() {
		return "", errCipher.Msg("malformed ciphertext")
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", errCipher.Msg("decryption failed").Err(err)
	}
	return string(plain), nil
}
