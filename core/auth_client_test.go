package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthClientAuthenticateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/authenticate" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var creds credentialPayload
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			t.Errorf("decode: %v", err)
		}
		if creds.Username != "alice" || creds.Password != "s3cret" {
			t.Errorf("unexpected credentials: %+v", creds)
		}
		json.NewEncoder(w).Encode(tokenResponse{AccessToken: "signed-token", TokenType: "bearer"})
	}))
	defer srv.Close()

	client := NewHTTPAuthClient(srv.URL)
	token, err := client.Authenticate(context.Background(), "alice", "s3cret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if token != "signed-token" {
		t.Fatalf("token = %q", token)
	}
}

func TestAuthClientAuthenticateRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewHTTPAuthClient(srv.URL)
	if _, err := client.Authenticate(context.Background(), "alice", "wrong"); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestAuthClientAuthenticateMissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 without access_token is server misbehaviour, not caller error.
		json.NewEncoder(w).Encode(map[string]string{"token_type": "bearer"})
	}))
	defer srv.Close()

	client := NewHTTPAuthClient(srv.URL)
	if _, err := client.Authenticate(context.Background(), "alice", "s3cret"); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestAuthClientAuthenticateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // closed server: connection refused

	client := NewHTTPAuthClient(srv.URL)
	_, err := client.Authenticate(context.Background(), "alice", "s3cret")
	if err == nil || errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestAuthClientRegisterPropagatesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/register" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewHTTPAuthClient(srv.URL)
	_, status, err := client.Register(context.Background(), "alice", "s3cret")
	if err == nil {
		t.Fatal("expected registration error")
	}
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
}

func TestAuthClientRegisterSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(RegisteredUser{ID: 7, Username: "alice"})
	}))
	defer srv.Close()

	client := NewHTTPAuthClient(srv.URL)
	user, status, err := client.Register(context.Background(), "alice", "s3cret")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if status != http.StatusCreated || user.ID != 7 || user.Username != "alice" {
		t.Fatalf("unexpected result: %d %+v", status, user)
	}
}
