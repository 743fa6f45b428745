package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaguard/backend/internal/eventhub"
	"mediaguard/backend/internal/identity"
	"mediaguard/backend/internal/ledger"
	"mediaguard/backend/internal/models"
	"mediaguard/backend/internal/storage"
)

var (
	owner = identity.MustParse("0x0000000000000000000000000000000000000001")
	alice = identity.MustParse("0xa11ce00000000000000000000000000000000000")
	bob   = identity.MustParse("0xb0b0000000000000000000000000000000000000")
	token = identity.MustParse("0x7070707070707070707070707070707070707070")
)

type testServer struct {
	router *gin.Engine
	auth   *Authenticator
	hub    *eventhub.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hub := eventhub.NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	l, err := ledger.New(ctx, storage.NewMemory(), identity.NewAuthority(owner), models.TokenLink{Address: token},
		ledger.Options{Publisher: hub, Logger: logger})
	require.NoError(t, err)

	auth := NewAuthenticator("test-secret", "mediaguard-test", time.Hour)
	return &testServer{
		router: NewRouter(NewHandler(l, hub, auth, logger)),
		auth:   auth,
		hub:    hub,
	}
}

func (s *testServer) do(t *testing.T, method, path string, as identity.Identity, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != "" {
		tok, err := s.auth.Issue(as)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func post(score int) gin.H {
	return gin.H{"content_hash": "QmHash", "vulgarity_score": score}
}

func TestRegisterAndGetUser(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/api/v1/register", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthorized", body["error"])

	code, body = s.do(t, http.MethodPost, "/api/v1/register", alice, nil)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, alice.String(), body["address"])
	assert.Equal(t, true, body["is_registered"])

	code, body = s.do(t, http.MethodPost, "/api/v1/register", alice, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_registered", body["error"])

	code, body = s.do(t, http.MethodGet, "/api/v1/users/"+strings.ToUpper(alice.String()[2:]), "", nil)
	assert.Equal(t, http.StatusBadRequest, code, "address without 0x prefix")
	assert.Equal(t, "invalid_request", body["error"])

	code, body = s.do(t, http.MethodGet, "/api/v1/users/"+alice.String(), "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "active", body["state"])

	code, body = s.do(t, http.MethodGet, "/api/v1/users/"+bob.String(), "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["error"])
}

func TestCreatePostFlow(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/api/v1/posts", alice, post(10))
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "not_registered", body["error"])

	s.do(t, http.MethodPost, "/api/v1/register", alice, nil)

	code, body = s.do(t, http.MethodPost, "/api/v1/posts", alice, gin.H{"content_hash": "QmHash"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_request", body["error"])

	code, body = s.do(t, http.MethodPost, "/api/v1/posts", alice, post(101))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_score", body["error"])

	code, body = s.do(t, http.MethodPost, "/api/v1/posts", alice, post(0))
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, float64(0), body["id"])
	assert.Equal(t, false, body["is_blocked"])

	for i := 0; i < 3; i++ {
		code, body = s.do(t, http.MethodPost, "/api/v1/posts", alice, post(75))
		require.Equal(t, http.StatusCreated, code)
		assert.Equal(t, true, body["is_blocked"])
	}

	code, body = s.do(t, http.MethodPost, "/api/v1/posts", alice, post(5))
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "user_blocked", body["error"])

	code, body = s.do(t, http.MethodGet, "/api/v1/posts/count", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(4), body["count"])

	code, body = s.do(t, http.MethodGet, "/api/v1/posts/3", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, alice.String(), body["author"])

	code, _ = s.do(t, http.MethodGet, "/api/v1/posts/4", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(t, http.MethodGet, "/api/v1/posts/-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUnblockWorkflow(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/v1/register", alice, nil)
	s.do(t, http.MethodPost, "/api/v1/register", bob, nil)

	code, body := s.do(t, http.MethodPost, "/api/v1/unblock-requests", alice, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "not_blocked", body["error"])

	for i := 0; i < 3; i++ {
		s.do(t, http.MethodPost, "/api/v1/posts", alice, post(90))
	}

	unblockPath := "/api/v1/admin/users/" + alice.String() + "/unblock"
	code, body = s.do(t, http.MethodPost, unblockPath, owner, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "no_pending_request", body["error"])

	code, _ = s.do(t, http.MethodPost, "/api/v1/unblock-requests", alice, nil)
	require.Equal(t, http.StatusAccepted, code)

	code, body = s.do(t, http.MethodGet, "/api/v1/admin/unblock-requests", owner, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["participants"], 1)

	code, body = s.do(t, http.MethodPost, unblockPath, bob, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "not_owner", body["error"])

	code, _ = s.do(t, http.MethodPost, unblockPath, owner, nil)
	require.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodGet, "/api/v1/users/"+alice.String(), "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "active", body["state"])
	participant := body["participant"].(map[string]any)
	assert.Equal(t, float64(0), participant["violation_count"])
}

func TestRejectWorkflow(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/v1/register", alice, nil)
	for i := 0; i < 3; i++ {
		s.do(t, http.MethodPost, "/api/v1/posts", alice, post(90))
	}
	s.do(t, http.MethodPost, "/api/v1/unblock-requests", alice, nil)

	code, body := s.do(t, http.MethodPost, "/api/v1/admin/users/"+alice.String()+"/reject", owner, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "rejected", body["status"])

	code, body = s.do(t, http.MethodGet, "/api/v1/users/"+alice.String(), "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "blocked", body["state"])
}

func TestAdminReadsRequireOwner(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/v1/register", alice, nil)
	s.do(t, http.MethodPost, "/api/v1/posts", alice, post(80))

	for _, path := range []string{"/api/v1/admin/stats", "/api/v1/admin/blocked", "/api/v1/admin/unblock-requests", "/api/v1/admin/dashboard", "/api/v1/admin/users/" + alice.String() + "/posts"} {
		code, body := s.do(t, http.MethodGet, path, alice, nil)
		assert.Equal(t, http.StatusForbidden, code, path)
		assert.Equal(t, "not_owner", body["error"], path)
	}

	code, body := s.do(t, http.MethodGet, "/api/v1/admin/stats", owner, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["total_participants"])
	assert.Equal(t, float64(1), body["blocked_posts"])

	code, body = s.do(t, http.MethodGet, "/api/v1/admin/users/"+alice.String()+"/posts", owner, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["posts"], 1)

	code, body = s.do(t, http.MethodGet, "/api/v1/admin/dashboard?limit=1", owner, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["recent_posts"], 1)
	assert.Equal(t, float64(1), body["stats"].(map[string]any)["total_posts"])

	code, _ = s.do(t, http.MethodGet, "/api/v1/admin/dashboard?limit=0", owner, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTokenLinkAndHealth(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodGet, "/api/v1/token", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, token.String(), body["address"])

	code, body = s.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestAuthenticator(t *testing.T) {
	auth := NewAuthenticator("secret", "issuer-a", time.Hour)

	tok, err := auth.Issue(alice)
	require.NoError(t, err)
	got, err := auth.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	other := NewAuthenticator("secret", "issuer-b", time.Hour)
	_, err = other.Verify(tok)
	assert.Error(t, err, "issuer must match")

	forged := NewAuthenticator("other-secret", "issuer-a", time.Hour)
	_, err = forged.Verify(tok)
	assert.Error(t, err, "signature must match")

	expired := NewAuthenticator("secret", "issuer-a", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue(alice)
	require.NoError(t, err)
	_, err = auth.Verify(old)
	assert.Error(t, err, "expired tokens are rejected")
}

func TestEventStreamIsOwnerOnly(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events"

	aliceToken, err := s.auth.Issue(alice)
	require.NoError(t, err)
	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token="+aliceToken, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	ownerToken, err := s.auth.Issue(owner)
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+ownerToken+"&types=user.registered", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	code, _ := s.do(t, http.MethodPost, "/api/v1/register", alice, nil)
	require.Equal(t, http.StatusCreated, code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev models.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.EventUserRegistered, ev.Type)
	assert.Equal(t, alice, ev.Subject)
}
