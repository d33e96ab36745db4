package firebase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authServer(t *testing.T, handler http.HandlerFunc) *AuthClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewAuthClient("test-key")
	c.identityURL = srv.URL
	c.tokenURL = srv.URL
	return c
}

func TestSignIn(t *testing.T) {
	t.Parallel()
	var gotPath string
	var gotBody credentialsReq
	c := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(credentialsResp{
			IDToken:      "id-tok",
			RefreshToken: "refresh-tok",
			LocalID:      "u1",
			Email:        "a@b.c",
			ExpiresIn:    "3600",
		})
	})

	s, err := c.SignIn(context.Background(), "a@b.c", "hunter22")
	require.NoError(t, err)

	assert.Equal(t, "/accounts:signInWithPassword?key=test-key", gotPath)
	assert.Equal(t, credentialsReq{Email: "a@b.c", Password: "hunter22", ReturnSecureToken: true}, gotBody)
	assert.Equal(t, "u1", s.UserID)
	assert.Equal(t, "a@b.c", s.Email)
	assert.Equal(t, "id-tok", s.IDToken)
	assert.Equal(t, "refresh-tok", s.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.ExpiresAt, 5*time.Second)
	assert.True(t, s.Active())
}

func TestSignUp_Endpoint(t *testing.T) {
	t.Parallel()
	var gotPath string
	c := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(credentialsResp{IDToken: "t", LocalID: "u2", ExpiresIn: "3600"})
	})

	_, err := c.SignUp(context.Background(), "new@b.c", "password1")
	require.NoError(t, err)
	assert.Equal(t, "/accounts:signUp", gotPath)
}

func TestAuthErrorMapping(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code string
		want string
	}{
		{"EMAIL_EXISTS", "an account with this email already exists"},
		{"INVALID_LOGIN_CREDENTIALS", "wrong email or password"},
		{"WEAK_PASSWORD", "password is too weak (at least 6 characters)"},
		{"SOMETHING_NEW", "sign-in failed (SOMETHING_NEW)"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			c := authServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error": {"message": "` + tt.code + `"}}`))
			})

			_, err := c.SignIn(context.Background(), "a@b.c", "pw")
			var authErr *AuthError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, tt.code, authErr.Code)
			assert.Equal(t, tt.want, authErr.Error())
		})
	}
}

func TestSignIn_Unreachable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewAuthClient("k")
	c.identityURL = srv.URL

	_, err := c.SignIn(context.Background(), "a@b.c", "pw")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "NETWORK", authErr.Code)
}

func TestRefresh(t *testing.T) {
	t.Parallel()
	var gotBody map[string]string
	c := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(refreshResp{
			IDToken:      "fresh-tok",
			RefreshToken: "next-refresh",
			UserID:       "u1",
			ExpiresIn:    "3600",
		})
	})

	s, err := c.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "refresh_token", gotBody["grant_type"])
	assert.Equal(t, "old-refresh", gotBody["refresh_token"])
	assert.Equal(t, "fresh-tok", s.IDToken)
	assert.Equal(t, "u1", s.UserID)
}
