package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomchat/roomchat/internal/database"
	"github.com/roomchat/roomchat/internal/types"
)

func Test_errorHandler(t *testing.T) {
	s := newTestServer(t, &database.MockChatRepository{})

	t.Run("recovers from a panicking handler", func(t *testing.T) {
		h := s.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected status code to be 500")
		assert.Equal(t, "close", rr.Header().Get("Connection"), "expected connection to be closed")
		assert.JSONEq(t, `{"status_code":500,"message":"internal server error"}`, rr.Body.String(),
			"expected a generic error body")
	})

	t.Run("passes through a healthy handler", func(t *testing.T) {
		h := s.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users", nil))

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
	})
}

func Test_authMiddleware(t *testing.T) {
	s := newTestServer(t, &database.MockChatRepository{})

	token, err := s.createJwtForSession(types.User{Email: "alice@example.com"}, defaultJwtExpiration)
	require.NoError(t, err, "expected token to be created")

	handler := s.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		email, ok := UserEmail(r.Context())
		require.True(t, ok, "expected email in request context")
		w.Write([]byte(email))
	})

	t.Run("valid token in cookie", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.AddCookie(createJwtCookie(token, defaultJwtExpiration))
		handler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
		assert.Equal(t, "alice@example.com", rr.Body.String(), "expected the verified email")
		assert.Contains(t, rr.Header().Get("Cache-Control"), "no-store", "expected caching to be disabled")
	})

	t.Run("valid token in bearer header", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		handler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
		assert.Equal(t, "alice@example.com", rr.Body.String(), "expected the verified email")
	})

	t.Run("missing token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		handler(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected status code to be 401")
	})

	t.Run("malformed token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		handler(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected status code to be 401")
	})
}
