package session

import (
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"github.com/avatarctic/ticket-cache/internal/core/domain/ticket"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

const keyInfo = "ticket-cache cookie key"

// KeyStore holds the session's cookie key. The initial key is derived from a
// secret and a fresh session id; a cached ticket replaces it with the key it
// was issued under.
type KeyStore struct {
	mu        sync.RWMutex
	key       []byte
	size      int
	sessionID uuid.UUID
}

// NewKeyStore derives a size-byte key for a new session.
func NewKeyStore(secret string, size int) (*KeyStore, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cookie key size must be positive, got %d", size)
	}
	sid := uuid.New()
	key := make([]byte, size)
	r := hkdf.New(sha256.New, []byte(secret), sid[:], []byte(keyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive cookie key: %w", err)
	}
	return &KeyStore{key: key, size: size, sessionID: sid}, nil
}

// CookieKey returns a copy of the current key.
func (s *KeyStore) CookieKey() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.key...)
}

func (s *KeyStore) SetCookieKey(key []byte) error {
	if len(key) != s.size {
		return fmt.Errorf("%w: got %d bytes, want %d", ticket.ErrCookieKeySize, len(key), s.size)
	}
	s.mu.Lock()
	s.key = append(s.key[:0], key...)
	s.mu.Unlock()
	return nil
}

func (s *KeyStore) KeySize() int { return s.size }

func (s *KeyStore) SessionID() uuid.UUID { return s.sessionID }
