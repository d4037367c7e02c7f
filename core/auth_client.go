package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrAuthFailed is returned when the auth service rejects the credentials.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrMissingToken is returned when the auth service reports success but
	// the response carries no access token. That is server misbehaviour, not
	// a caller error, and surfaces as 500 rather than 401.
	ErrMissingToken = errors.New("no access token returned")
)

// AuthClient abstracts the auth service interaction.
type AuthClient interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, username, password string) (RegisteredUser, int, error)
}

// RegisteredUser is the projection the auth service returns on registration.
type RegisteredUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// HTTPAuthClient calls the auth service HTTP endpoints. Every inbound request
// re-authenticates; tokens are never cached locally.
type HTTPAuthClient struct {
	client *http.Client
	base   string
}

func NewHTTPAuthClient(baseURL string) *HTTPAuthClient {
	return &HTTPAuthClient{
		client: &http.Client{Timeout: 10 * time.Second},
		base:   baseURL,
	}
}

type credentialPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Authenticate exchanges credentials for a signed token with one blocking
// call. A non-success response is surfaced as ErrAuthFailed and is not
// retried.
func (c *HTTPAuthClient) Authenticate(ctx context.Context, username, password string) (string, error) {
	if c.base == "" {
		return "", errors.New("auth service url not configured")
	}

	b, _ := json.Marshal(credentialPayload{Username: username, Password: password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/authenticate", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", ErrAuthFailed
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.AccessToken == "" {
		return "", ErrMissingToken
	}
	return body.AccessToken, nil
}

// Register forwards a registration request and returns the created user plus
// the upstream status code so the coordinator can propagate it verbatim.
func (c *HTTPAuthClient) Register(ctx context.Context, username, password string) (RegisteredUser, int, error) {
	if c.base == "" {
		return RegisteredUser{}, 0, errors.New("auth service url not configured")
	}

	b, _ := json.Marshal(credentialPayload{Username: username, Password: password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/register", bytes.NewReader(b))
	if err != nil {
		return RegisteredUser{}, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return RegisteredUser{}, 0, fmt.Errorf("auth service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return RegisteredUser{}, resp.StatusCode, errors.New("user registration failed")
	}

	var user RegisteredUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return RegisteredUser{}, resp.StatusCode, err
	}
	return user, resp.StatusCode, nil
}
