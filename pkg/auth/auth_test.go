package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeySet(t *testing.T) {
	s := NewKeySet("static", "")
	assert.Equal(t, 1, s.Len())

	key, err := s.Generate("ops")
	require.NoError(t, err)
	assert.Len(t, key, 43)
	assert.Equal(t, 2, s.Len())

	desc, ok := s.Validate(key)
	assert.True(t, ok)
	assert.Equal(t, "ops", desc)

	desc, ok = s.Validate("static")
	assert.True(t, ok)
	assert.Equal(t, "config", desc)

	_, ok = s.Validate("other")
	assert.False(t, ok)

	s.Revoke(key)
	_, ok = s.Validate(key)
	assert.False(t, ok)
}

func TestBearerKey(t *testing.T) {
	tests := []struct {
		header string
		want   string
		err    error
	}{
		{"Bearer abc", "abc", nil},
		{"bearer  abc ", "abc", nil},
		{"", "", ErrMissingKey},
		{"Basic abc", "", ErrMissingKey},
		{"Bearer ", "", ErrMissingKey},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		got, err := BearerKey(r)
		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err, tt.header)
			continue
		}
		require.NoError(t, err, tt.header)
		assert.Equal(t, tt.want, got)
	}
}

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	serve := func(s *KeySet, header string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/tasks/rescan", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		s.Middleware(ok).ServeHTTP(w, r)
		return w
	}

	assert.Equal(t, http.StatusNoContent, serve(NewKeySet(), "").Code)

	s := NewKeySet("secret")
	assert.Equal(t, http.StatusNoContent, serve(s, "Bearer secret").Code)

	w := serve(s, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), ErrMissingKey.Error())
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))

	w = serve(s, "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), ErrInvalidKey.Error())
}
