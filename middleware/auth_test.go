package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := GetUserIDFromContext(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(id + "|" + GetUserNameFromContext(r.Context())))
	})
}

func TestAuthenticate(t *testing.T) {
	valid, err := IssueToken(testSecret, "u-42", "Alice", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(testSecret, "u-42", "Alice", -time.Hour)
	require.NoError(t, err)
	foreign, err := IssueToken([]byte("other"), "u-42", "Alice", time.Hour)
	require.NoError(t, err)
	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"name": "x"}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
		wantBody   string
	}{
		{"bearer header", "Bearer " + valid, "", http.StatusOK, "u-42|Alice"},
		{"query token", "", valid, http.StatusOK, "u-42|Alice"},
		{"missing", "", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic " + valid, "", http.StatusUnauthorized, ""},
		{"expired", "Bearer " + expired, "", http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + foreign, "", http.StatusUnauthorized, ""},
		{"no user claim", "Bearer " + noUser, "", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/ws"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			Authenticate(testSecret)(echoUser()).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestGetUserIDFromContext(t *testing.T) {
	_, err := GetUserIDFromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoUserInContext)

	id, err := GetUserIDFromContext(WithUserID(context.Background(), "abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	numeric := context.WithValue(context.Background(), userContextKey, jwt.MapClaims{"user_id": float64(17)})
	id, err = GetUserIDFromContext(numeric)
	require.NoError(t, err)
	assert.Equal(t, "17", id)
}
