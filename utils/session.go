package utils

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"anime_tracker/firebase"
)

// The session survives restarts the same way the progress file of a reader
// app would: a small JSON file in the config dir, owner-readable only since
// it holds live tokens.

func SessionPath() string {
	return filepath.Join(ConfigDir(), "session.json")
}

func SaveSession(s firebase.Session) error {
	if err := os.MkdirAll(ConfigDir(), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(SessionPath(), data, 0600)
}

func LoadSession() (firebase.Session, bool) {
	data, err := os.ReadFile(SessionPath())
	if err != nil {
		return firebase.Session{}, false
	}
	var s firebase.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return firebase.Session{}, false
	}
	if s.RefreshToken == "" || s.UserID == "" {
		return firebase.Session{}, false
	}
	return s, true
}

func ClearSession() error {
	err := os.Remove(SessionPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// tokenExpiry reads the expiry claim out of the ID token itself. The token is
// not verified here; the services verify it on every call, this is only to
// decide whether a refresh is needed before first use.
func tokenExpiry(idToken string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(idToken, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// RestoreSession loads the persisted session and refreshes its ID token when
// it is expired or close to it. Returns false when there is nothing usable;
// the caller starts unauthenticated and the stale file is cleared.
func RestoreSession(ctx context.Context, auth *firebase.AuthClient) (firebase.Session, bool) {
	s, ok := LoadSession()
	if !ok {
		return firebase.Session{}, false
	}

	exp, ok := tokenExpiry(s.IDToken)
	if ok && time.Until(exp) > time.Minute {
		s.ExpiresAt = exp
		return s, true
	}

	fresh, err := auth.Refresh(ctx, s.RefreshToken)
	if err != nil {
		_ = ClearSession()
		return firebase.Session{}, false
	}
	fresh.Email = s.Email
	_ = SaveSession(fresh)
	return fresh, true
}
