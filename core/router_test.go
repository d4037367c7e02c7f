package core

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// stubAuthClient avoids a live auth service in handler tests.
type stubAuthClient struct {
	token   string
	authErr error
}

func (s *stubAuthClient) Authenticate(ctx context.Context, username, password string) (string, error) {
	if s.authErr != nil {
		return "", s.authErr
	}
	return s.token, nil
}

func (s *stubAuthClient) Register(ctx context.Context, username, password string) (RegisteredUser, int, error) {
	return RegisteredUser{ID: 1, Username: username}, http.StatusCreated, nil
}

func routerFixture(t *testing.T, auth AuthClient) (*gin.Engine, *TaskQueue) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	queue := NewTaskQueue(client)
	publisher := NewTaskPublisher(queue)
	repo := &fakeProductRepo{}
	metrics := NewMetricsService(client)
	return NewRouter(Load(), auth, publisher, repo, metrics), queue
}

func basicHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func postProcess(t *testing.T, router *gin.Engine, header string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestProcessAcceptsAndPublishes(t *testing.T) {
	router, queue := routerFixture(t, &stubAuthClient{token: "signed-token"})

	w := postProcess(t, router, basicHeader("alice", "s3cret"), `{"name":"Widget","description":"d","price":9.99}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (%s)", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "success" {
		t.Fatalf("body = %v", resp)
	}

	raw, err := queue.Reserve(context.Background(), TaskQueueKey, ProcessingQueueKey, time.Minute)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	env, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Token != "signed-token" {
		t.Errorf("token = %q", env.Token)
	}
	if env.Task["name"] != "Widget" {
		t.Errorf("task = %v", env.Task)
	}
}

func TestProcessRejectsBadAuthHeaders(t *testing.T) {
	router, _ := routerFixture(t, &stubAuthClient{token: "signed-token"})

	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Bearer abc",
		"bad base64":     "Basic !!!",
		"no colon":       "Basic " + base64.StdEncoding.EncodeToString([]byte("alice")),
	}
	for name, header := range cases {
		if w := postProcess(t, router, header, `{"name":"Widget"}`); w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", name, w.Code)
		}
	}
}

func TestProcessRejectsBadCredentials(t *testing.T) {
	router, _ := routerFixture(t, &stubAuthClient{authErr: ErrAuthFailed})
	if w := postProcess(t, router, basicHeader("alice", "wrong"), `{"name":"Widget"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestProcessMissingUpstreamToken(t *testing.T) {
	router, _ := routerFixture(t, &stubAuthClient{authErr: ErrMissingToken})
	if w := postProcess(t, router, basicHeader("alice", "s3cret"), `{"name":"Widget"}`); w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestProcessAuthServiceUnreachable(t *testing.T) {
	router, _ := routerFixture(t, &stubAuthClient{authErr: errors.New("auth service unreachable: dial tcp")})
	if w := postProcess(t, router, basicHeader("alice", "s3cret"), `{"name":"Widget"}`); w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
}

func TestProcessRejectsInvalidJSON(t *testing.T) {
	router, _ := routerFixture(t, &stubAuthClient{token: "signed-token"})
	if w := postProcess(t, router, basicHeader("alice", "s3cret"), `{not json`); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestRegisterProxies(t *testing.T) {
	router, _ := routerFixture(t, &stubAuthClient{})
	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString(`{"username":"alice","password":"s3cret"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", w.Code, w.Body.String())
	}
	var user RegisteredUser
	if err := json.Unmarshal(w.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("user = %+v", user)
	}
}

func TestStatusEndpoint(t *testing.T) {
	router, queue := routerFixture(t, &stubAuthClient{})
	if err := queue.Enqueue(context.Background(), TaskQueueKey, "pending-envelope"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	var resp struct {
		Queue QueueMetrics `json:"queue"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Queue.Pending != 1 {
		t.Fatalf("pending = %d, want 1", resp.Queue.Pending)
	}
}

func TestHealthz(t *testing.T) {
	router, _ := routerFixture(t, &stubAuthClient{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
