package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

// echoUser はContextのユーザーIDをボディに書き出すハンドラーです。
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	id, _ := GetUserIDFromContext(r.Context())
	w.Write([]byte(id))
})

func TestVerifyToken(t *testing.T) {
	valid := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	id, err := VerifyToken(valid, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)

	id, err = VerifyToken("Bearer "+valid, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)

	_, err = VerifyToken(valid, "other-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = VerifyToken("", testSecret)
	assert.ErrorIs(t, err, ErrMissingToken)

	expired := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	_, err = VerifyToken(expired, testSecret)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSub := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"role": "x"})
	_, err = VerifyToken(noSub, testSecret)
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestAuthMiddleware(t *testing.T) {
	handler := Auth{Secret: testSecret}.Middleware(echoUser)
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "user-42"})

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{name: "valid token", header: "Bearer " + token, status: http.StatusOK, body: "user-42"},
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer nope", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/games", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestAuthMiddleware_MissingSecret(t *testing.T) {
	handler := Auth{}.Middleware(echoUser)
	req := httptest.NewRequest(http.MethodGet, "/api/games", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAuthMiddleware_Bypass(t *testing.T) {
	handler := Auth{Bypass: true}.Middleware(echoUser)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, BypassUserID, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(BypassUserIDHeader, "player-2")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "player-2", rec.Body.String())
}

func TestCORSHandler(t *testing.T) {
	handler := CORSHandler([]string{"https://play.example"})(echoUser)

	req := httptest.NewRequest(http.MethodOptions, "/api/games", nil)
	req.Header.Set("Origin", "https://play.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "https://play.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/games", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
