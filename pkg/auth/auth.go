package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

var (
	ErrMissingKey = errors.New("missing API key")
	ErrInvalidKey = errors.New("invalid API key")
)

// KeySet holds the API keys accepted for mutating requests
type KeySet struct {
	keys map[string]string // key -> description
	mu   sync.RWMutex
}

// NewKeySet creates a key set holding keys, each described as "config"
func NewKeySet(keys ...string) *KeySet {
	s := &KeySet{keys: make(map[string]string, len(keys))}
	for _, k := range keys {
		if k != "" {
			s.keys[k] = "config"
		}
	}
	return s
}

// Generate creates and adds a random key
func (s *KeySet) Generate(description string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	key := base64.RawURLEncoding.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = description
	return key, nil
}

// Revoke removes a key
func (s *KeySet) Revoke(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
}

// Len returns the number of keys. An empty set disables authentication.
func (s *KeySet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Validate returns the description of key. Every stored key is compared in
// constant time.
func (s *KeySet) Validate(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		desc  string
		found bool
	)
	for k, d := range s.keys {
		if SecureCompare(k, key) {
			desc, found = d, true
		}
	}
	return desc, found
}

// Middleware rejects requests without a valid bearer key with 401
func (s *KeySet) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Len() == 0 {
			next.ServeHTTP(w, r)
			return
		}
		key, err := BearerKey(r)
		if err == nil {
			if _, ok := s.Validate(key); !ok {
				err = ErrInvalidKey
			}
		}
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="stratum"`)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// BearerKey extracts the key from "Authorization: Bearer <key>"
func BearerKey(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, key, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(key) == "" {
		return "", ErrMissingKey
	}
	return strings.TrimSpace(key), nil
}

// SecureCompare performs constant-time comparison
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
