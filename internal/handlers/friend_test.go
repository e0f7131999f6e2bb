// internal/handlers/friend_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/sipstreak/internal/auth"
	"github.com/jason-s-yu/sipstreak/internal/database/memory"
	"github.com/jason-s-yu/sipstreak/internal/friends"
	"github.com/jason-s-yu/sipstreak/internal/models"
	"github.com/jason-s-yu/sipstreak/internal/notify"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server   *APIServer
	handler  http.Handler
	store    *memory.Store
	sessions *auth.Sessions
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := memory.NewStore()
	bus := notify.NewBus(notify.DefaultBuffer)
	sessions, err := auth.NewSessions(time.Hour)
	require.NoError(t, err)

	s := &APIServer{
		Engine:         friends.NewEngine(store, store, bus, logger),
		Users:          store,
		Sessions:       sessions,
		Bus:            bus,
		Logger:         logger,
		OriginPatterns: []string{"*"},
	}
	return &testEnv{server: s, handler: s.Routes(), store: store, sessions: sessions}
}

type testUser struct {
	ID    uuid.UUID
	Token string
}

// createTestUser registers an account through the API and logs it in.
func (e *testEnv) createTestUser(t *testing.T, email, password, name string) testUser {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/user/create", "", map[string]string{
		"email":        email,
		"password":     password,
		"display_name": name,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var profile models.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))

	rec = e.do(t, http.MethodPost, "/user/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)

	return testUser{ID: profile.ID, Token: login.Token}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeProposal(t *testing.T, rec *httptest.ResponseRecorder) friends.ProposeResult {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res friends.ProposeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func listFriends(t *testing.T, e *testEnv, token string) []models.FriendView {
	t.Helper()
	rec := e.do(t, http.MethodGet, "/friends", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var views []models.FriendView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	return views
}

// TestFriendFlow walks a request from proposal through acceptance and removal.
func TestFriendFlow(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createTestUser(t, "alice@example.com", "password1", "alice")
	bob := env.createTestUser(t, "bob@example.com", "password2", "bob")

	res := decodeProposal(t, env.do(t, http.MethodPost, "/friends/requests", alice.Token,
		map[string]string{"email": "Bob@Example.com"}))
	require.True(t, res.Success)
	assert.Equal(t, friends.MessageSent, res.Message)
	require.NotNil(t, res.Request)

	// bob sees it as incoming
	rec := env.do(t, http.MethodGet, "/friends/requests", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []models.FriendRequestView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, "incoming", pending[0].Direction)
	assert.Equal(t, alice.ID, pending[0].Counterpart.ID)
	assert.Equal(t, "alice", pending[0].Counterpart.DisplayName)

	rec = env.do(t, http.MethodGet, "/friends/status/"+bob.ID.String(), alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rel friends.Relationship
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rel))
	assert.Equal(t, friends.RelationOutgoing, rel.State)

	respondPath := "/friends/requests/" + res.Request.ID.String() + "/respond"
	rec = env.do(t, http.MethodPost, respondPath, bob.Token, map[string]bool{"accept": true})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	// a second response finds nothing to claim
	rec = env.do(t, http.MethodPost, respondPath, bob.Token, map[string]bool{"accept": true})
	assert.Equal(t, http.StatusConflict, rec.Code)

	aliceFriends := listFriends(t, env, alice.Token)
	bobFriends := listFriends(t, env, bob.Token)
	require.Len(t, aliceFriends, 1)
	require.Len(t, bobFriends, 1)
	assert.Equal(t, bob.ID, aliceFriends[0].Friend.ID)
	assert.Equal(t, alice.ID, bobFriends[0].Friend.ID)

	res = decodeProposal(t, env.do(t, http.MethodPost, "/friends/requests", bob.Token,
		map[string]string{"email": "alice@example.com"}))
	assert.False(t, res.Success)
	assert.Equal(t, friends.ReasonAlreadyFriends, res.Message)

	// bob cannot remove alice's row
	rec = env.do(t, http.MethodDelete, "/friends/"+aliceFriends[0].ID.String(), bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, "/friends/"+aliceFriends[0].ID.String(), alice.Token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodDelete, "/friends/"+aliceFriends[0].ID.String(), alice.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Empty(t, listFriends(t, env, alice.Token))
	assert.Empty(t, listFriends(t, env, bob.Token))
}

func TestSendFriendRequestValidation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createTestUser(t, "alice@example.com", "password1", "alice")
	env.createTestUser(t, "bob@example.com", "password2", "bob")

	cases := []struct {
		name    string
		email   string
		message string
	}{
		{"unknown email", "nobody@example.com", friends.ReasonNoSuchUser},
		{"self", "ALICE@example.com", friends.ReasonSelf},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := decodeProposal(t, env.do(t, http.MethodPost, "/friends/requests", alice.Token,
				map[string]string{"email": tc.email}))
			assert.False(t, res.Success)
			assert.Equal(t, tc.message, res.Message)
			assert.Nil(t, res.Request)
		})
	}

	first := decodeProposal(t, env.do(t, http.MethodPost, "/friends/requests", alice.Token,
		map[string]string{"email": "bob@example.com"}))
	require.True(t, first.Success)
	again := decodeProposal(t, env.do(t, http.MethodPost, "/friends/requests", alice.Token,
		map[string]string{"email": "bob@example.com"}))
	assert.False(t, again.Success)
	assert.Equal(t, friends.ReasonPending, again.Message)

	rec := env.do(t, http.MethodPost, "/friends/requests", alice.Token, "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRejectAndCancel(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createTestUser(t, "alice@example.com", "password1", "alice")
	bob := env.createTestUser(t, "bob@example.com", "password2", "bob")

	res := decodeProposal(t, env.do(t, http.MethodPost, "/friends/requests", alice.Token,
		map[string]string{"email": "bob@example.com"}))
	require.True(t, res.Success)
	respondPath := "/friends/requests/" + res.Request.ID.String() + "/respond"

	// the sender cannot answer its own request
	rec := env.do(t, http.MethodPost, respondPath, alice.Token, map[string]bool{"accept": true})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, respondPath, bob.Token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, respondPath, bob.Token, map[string]bool{"accept": false})
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, listFriends(t, env, bob.Token))

	// rejection does not block a later proposal
	res = decodeProposal(t, env.do(t, http.MethodPost, "/friends/requests", alice.Token,
		map[string]string{"email": "bob@example.com"}))
	require.True(t, res.Success)

	cancelPath := "/friends/requests/" + res.Request.ID.String()
	rec = env.do(t, http.MethodDelete, cancelPath, bob.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = env.do(t, http.MethodDelete, cancelPath, alice.Token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodDelete, cancelPath, alice.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodDelete, "/friends/requests/not-a-uuid", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFriendRoutesRequireIdentity(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/friends", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/friends", "garbage", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	other, err := auth.NewSessions(time.Hour)
	require.NoError(t, err)
	forged, err := other.CreateJWT(uuid.New())
	require.NoError(t, err)
	rec = env.do(t, http.MethodGet, "/friends", forged, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestFriendEventsWebSocket(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createTestUser(t, "alice@example.com", "password1", "alice")
	bob := env.createTestUser(t, "bob@example.com", "password2", "bob")

	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+bob.Token)
	c, _, err := websocket.Dial(ctx, "ws"+srv.URL[len("http"):]+"/friends/ws", &websocket.DialOptions{
		HTTPHeader:   header,
		Subprotocols: []string{"friends"},
	})
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	res := decodeProposal(t, env.do(t, http.MethodPost, "/friends/requests", alice.Token,
		map[string]string{"email": "bob@example.com"}))
	require.True(t, res.Success)

	var ev models.Event
	require.NoError(t, wsjson.Read(ctx, c, &ev))
	assert.Equal(t, models.EventRequestCreated, ev.Type)
	require.NotNil(t, ev.RequestID)
	assert.Equal(t, res.Request.ID, *ev.RequestID)
	assert.Nil(t, ev.FriendshipID)
	assert.Contains(t, ev.Recipients, bob.ID)
}

func TestUserEndpoints(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createTestUser(t, "alice@example.com", "password1", "alice")

	rec := env.do(t, http.MethodPost, "/user/create", "", map[string]string{
		"email":    "ALICE@example.com",
		"password": "password3",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/user/create", "", map[string]string{
		"email":    "carol@example.com",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/user/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/user/me", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, alice.ID.String(), me["id"])
	assert.NotContains(t, me, "password")
}

func TestFriendEventsWebSocketReleasesSubscription(t *testing.T) {
	env := newTestEnv(t)
	bob := env.createTestUser(t, "bob@example.com", "password2", "bob")

	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+bob.Token)
	c, _, err := websocket.Dial(ctx, "ws"+srv.URL[len("http"):]+"/friends/ws", &websocket.DialOptions{
		HTTPHeader:   header,
		Subprotocols: []string{"friends"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, env.server.Bus.Subscribers(bob.ID))

	c.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool {
		return env.server.Bus.Subscribers(bob.ID) == 0
	}, 3*time.Second, 20*time.Millisecond)
}
