package ledger

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const (
	minLookupKeyLength = 32
	// maxTokenLength bounds the input hashed by ValidateAndConsume. Issued tokens are far
	// shorter (128 bytes of entropy encode to 171 characters).
	maxTokenLength = 512
)

// Hasher derives lookup hashes from token secrets with HMAC-SHA256 under a server key,
// so a leaked table cannot be matched against guessed secrets offline.
type Hasher struct {
	key []byte
}

func NewHasher(key []byte) (*Hasher, error) {
	if len(key) < minLookupKeyLength {
		return nil, fmt.Errorf("lookup key must be at least %d bytes", minLookupKeyLength)
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Hasher{key: k}, nil
}

// NewEphemeralHasher uses a random key. Tokens issued under it stop validating after a restart.
func NewEphemeralHasher() (*Hasher, error) {
	key := make([]byte, minLookupKeyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenGenerationFailed, err)
	}
	return &Hasher{key: key}, nil
}

func (h *Hasher) Hash(token string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Equal compares two lookup hashes in constant time.
func (h *Hasher) Equal(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

func generateSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
