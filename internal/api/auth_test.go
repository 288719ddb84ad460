package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomchat/roomchat/internal/database"
	"github.com/roomchat/roomchat/internal/types"
)

func TestUserEmail(t *testing.T) {
	tcases := []struct {
		name          string
		ctx           context.Context
		expectedEmail string
		expectedOk    bool
	}{
		{
			name:          "email present in context",
			ctx:           WithUserEmail(context.Background(), "alice@example.com"),
			expectedEmail: "alice@example.com",
			expectedOk:    true,
		},
		{
			name:          "email not present in context",
			ctx:           context.Background(),
			expectedEmail: "",
			expectedOk:    false,
		},
		{
			name:          "value of wrong type",
			ctx:           context.WithValue(context.Background(), userEmailKey, 42),
			expectedEmail: "",
			expectedOk:    false,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			email, ok := UserEmail(tc.ctx)
			assert.Equal(t, tc.expectedEmail, email, "expected email to match")
			assert.Equal(t, tc.expectedOk, ok, "expected ok to match")
		})
	}
}

func Test_hashPassword(t *testing.T) {
	hash, err := hashPassword("password")
	require.NoError(t, err, "expected password to hash")
	assert.NotEqual(t, "password", hash, "expected hash to differ from plaintext")
	assert.True(t, verifyPassword(hash, "password"), "expected correct password to verify")
	assert.False(t, verifyPassword(hash, "wrong"), "expected wrong password to fail")
}

func Test_extractEmailFromRequest(t *testing.T) {
	s := newTestServer(t, &database.MockChatRepository{})

	token, err := s.createJwtForSession(types.User{Email: "alice@example.com"}, defaultJwtExpiration)
	require.NoError(t, err, "expected token to be created")

	t.Run("token in bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		email, err := s.extractEmailFromRequest(req)
		require.NoError(t, err, "expected token to verify")
		assert.Equal(t, "alice@example.com", email, "expected email claim")
	})

	t.Run("token in cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.AddCookie(createJwtCookie(token, defaultJwtExpiration))

		email, err := s.extractEmailFromRequest(req)
		require.NoError(t, err, "expected token to verify")
		assert.Equal(t, "alice@example.com", email, "expected email claim")
	})

	t.Run("no token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)

		_, err := s.extractEmailFromRequest(req)
		assert.Error(t, err, "expected an error without a token")
	})

	t.Run("token signed with another key", func(t *testing.T) {
		other := newTestServer(t, &database.MockChatRepository{})
		other.signingKey = []byte("another-signing-key")

		badToken, err := other.createJwtForSession(types.User{Email: "alice@example.com"}, defaultJwtExpiration)
		require.NoError(t, err, "expected token to be created")

		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Header.Set("Authorization", "Bearer "+badToken)

		_, err = s.extractEmailFromRequest(req)
		assert.Error(t, err, "expected verification to fail")
	})

	t.Run("expired token", func(t *testing.T) {
		expired, err := s.createJwtForSession(types.User{Email: "alice@example.com"}, -time.Minute)
		require.NoError(t, err, "expected token to be created")

		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Header.Set("Authorization", "Bearer "+expired)

		_, err = s.extractEmailFromRequest(req)
		assert.Error(t, err, "expected expired token to fail")
	})
}

func Test_createJwtCookie(t *testing.T) {
	cookie := createJwtCookie("token-value", time.Hour)
	assert.Equal(t, tokenCookieKey, cookie.Name, "expected cookie name")
	assert.Equal(t, "token-value", cookie.Value, "expected cookie value")
	assert.Equal(t, "/", cookie.Path, "expected cookie path")
	assert.True(t, cookie.HttpOnly, "expected an HttpOnly cookie")
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite, "expected strict same-site mode")
	assert.WithinDuration(t, time.Now().Add(time.Hour), cookie.Expires, time.Minute,
		"expected expiry near the requested duration")
}
