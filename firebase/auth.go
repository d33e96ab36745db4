// Package firebase holds thin REST clients for the two hosted services this
// app delegates to: the identity provider and the Realtime Database that
// stores each user's list.
package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultIdentityURL    = "https://identitytoolkit.googleapis.com/v1"
	defaultSecureTokenURL = "https://securetoken.googleapis.com/v1"
)

// Session is the authenticated identity of the current user. IDToken is sent
// with every store call; RefreshToken outlives it and is used to mint a new
// one when a persisted session is restored after the token expired.
type Session struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	IDToken      string    `json:"id_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Active reports whether the session holds a token that has not expired yet.
func (s Session) Active() bool {
	return s.IDToken != "" && time.Now().Before(s.ExpiresAt)
}

// AuthError is a sign-in/sign-up failure with the provider's code and a
// human-readable cause.
type AuthError struct {
	Code  string
	Cause string
}

func (e *AuthError) Error() string { return e.Cause }

// TokenSource supplies the current ID token for store calls; the session can
// be replaced underneath long-lived components.
type TokenSource func() string

type AuthClient struct {
	apiKey      string
	identityURL string
	tokenURL    string
	client      *http.Client
}

func NewAuthClient(apiKey string) *AuthClient {
	return &AuthClient{
		apiKey:      apiKey,
		identityURL: defaultIdentityURL,
		tokenURL:    defaultSecureTokenURL,
		client:      &http.Client{Timeout: 15 * time.Second},
	}
}

type credentialsReq struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type credentialsResp struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	ExpiresIn    string `json:"expiresIn"`
}

// SignIn authenticates an existing account.
func (c *AuthClient) SignIn(ctx context.Context, email, password string) (Session, error) {
	return c.credentials(ctx, "accounts:signInWithPassword", email, password)
}

// SignUp creates a new account and signs it in.
func (c *AuthClient) SignUp(ctx context.Context, email, password string) (Session, error) {
	return c.credentials(ctx, "accounts:signUp", email, password)
}

func (c *AuthClient) credentials(ctx context.Context, endpoint, email, password string) (Session, error) {
	body, _ := json.Marshal(credentialsReq{Email: email, Password: password, ReturnSecureToken: true})
	u := fmt.Sprintf("%s/%s?key=%s", c.identityURL, endpoint, c.apiKey)

	var out credentialsResp
	if err := c.post(ctx, u, body, &out); err != nil {
		return Session{}, err
	}
	return sessionFrom(out.LocalID, out.Email, out.IDToken, out.RefreshToken, out.ExpiresIn), nil
}

type refreshResp struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
	ExpiresIn    string `json:"expires_in"`
}

// Refresh exchanges a refresh token for a new ID token. The email is not part
// of the response, so the caller carries it over from the stored session.
func (c *AuthClient) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	body, _ := json.Marshal(map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	})
	u := fmt.Sprintf("%s/token?key=%s", c.tokenURL, c.apiKey)

	var out refreshResp
	if err := c.post(ctx, u, body, &out); err != nil {
		return Session{}, err
	}
	return sessionFrom(out.UserID, "", out.IDToken, out.RefreshToken, out.ExpiresIn), nil
}

func (c *AuthClient) post(ctx context.Context, u string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return &AuthError{Code: "REQUEST", Cause: "could not build auth request"}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &AuthError{Code: "NETWORK", Cause: "auth service unreachable"}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAuthError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &AuthError{Code: "DECODE", Cause: "unexpected response from auth service"}
	}
	return nil
}

func decodeAuthError(resp *http.Response) *AuthError {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error.Message == "" {
		return &AuthError{Code: "HTTP", Cause: fmt.Sprintf("auth service returned %d", resp.StatusCode)}
	}
	return &AuthError{Code: body.Error.Message, Cause: causeText(body.Error.Message)}
}

// causeText maps provider codes to the message shown to the user.
func causeText(code string) string {
	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return "wrong email or password"
	case "EMAIL_EXISTS":
		return "an account with this email already exists"
	case "WEAK_PASSWORD : Password should be at least 6 characters", "WEAK_PASSWORD":
		return "password is too weak (at least 6 characters)"
	case "INVALID_EMAIL":
		return "that is not a valid email address"
	case "USER_DISABLED":
		return "this account has been disabled"
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return "too many attempts, try again later"
	case "TOKEN_EXPIRED", "INVALID_REFRESH_TOKEN", "USER_NOT_FOUND":
		return "session expired, sign in again"
	default:
		return "sign-in failed (" + code + ")"
	}
}

func sessionFrom(userID, email, idToken, refreshToken, expiresIn string) Session {
	ttl, err := strconv.Atoi(expiresIn)
	if err != nil || ttl <= 0 {
		ttl = 3600
	}
	return Session{
		UserID:       userID,
		Email:        email,
		IDToken:      idToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(ttl) * time.Second),
	}
}
