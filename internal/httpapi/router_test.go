package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/personapal/internal/auth"
	"github.com/suPer8Hu/personapal/internal/chat"
	"github.com/suPer8Hu/personapal/internal/config"
	"github.com/suPer8Hu/personapal/internal/db"
	"github.com/suPer8Hu/personapal/internal/httpapi/handlers"
	"github.com/suPer8Hu/personapal/internal/persona"
	"github.com/suPer8Hu/personapal/internal/profile"
	"github.com/suPer8Hu/personapal/internal/prompt"
	"github.com/suPer8Hu/personapal/internal/relay"
	"github.com/suPer8Hu/personapal/internal/reply"
	"github.com/suPer8Hu/personapal/internal/store/sqlstore"
)

const testSecret = "test-secret"

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router    *gin.Engine
	persister *chat.AsyncPersister
	store     *chat.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := db.Open(fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")))
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := sqlstore.New(gdb)
	require.NoError(t, s.AutoMigrate())

	cfg := config.Config{JWTSecret: testSecret, UpstreamTimeout: time.Second}
	repo := persona.NewRepository(s, nil, prompt.NewSynthesizer(nil, time.Second), time.Second)
	gen := reply.NewGenerator(nil, reply.WithDemoDelay(0, 0))
	transcripts := chat.NewStore(s, chat.NewMemoryIndex())
	persister := chat.NewAsyncPersister(transcripts, time.Second)
	hub := chat.NewHub(repo, gen, persister, transcripts)
	profiles := profile.NewService(s, time.Second)

	h := handlers.NewHandler(cfg, repo, hub, transcripts, profiles)
	return &testServer{
		router:    NewRouter(cfg, h, relay.NewHandler(nil, time.Second)),
		persister: persister,
		store:     transcripts,
	}
}

func token(t *testing.T, uid string) string {
	t.Helper()
	tok, err := auth.SignJWT(uid, uid+"@example.com", testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(t *testing.T, method, path, tok string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	return ts.doSession(t, method, path, tok, "", body)
}

func (ts *testServer) doSession(t *testing.T, method, path, tok, sessionTok string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if sessionTok != "" {
		req.Header.Set(handlers.SessionTokenHeader, sessionTok)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func TestPing(t *testing.T) {
	ts := newTestServer(t)
	w, env := ts.do(t, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Code)
	assert.Contains(t, string(env.Data), `"fallback_mode":true`)
}

func TestListPersonas_AnonymousSeesBuiltins(t *testing.T) {
	ts := newTestServer(t)
	w, env := ts.do(t, http.MethodGet, "/personas", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Personas []persona.Persona `json:"personas"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Len(t, data.Personas, len(persona.Builtins()))
}

func TestGetPersona_UnknownRedirectsHome(t *testing.T) {
	ts := newTestServer(t)
	w, env := ts.do(t, http.MethodGet, "/personas/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40401, env.Code)
	assert.JSONEq(t, `{"redirect":"/"}`, string(env.Data))
}

func TestCreatePersona_RequiresAuth(t *testing.T) {
	ts := newTestServer(t)
	w, env := ts.do(t, http.MethodPost, "/personas", "", persona.Draft{Name: "Alex"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 40101, env.Code)
}

func TestCreatePersona_ValidationAndSuccess(t *testing.T) {
	ts := newTestServer(t)
	tok := token(t, "u1")

	w, env := ts.do(t, http.MethodPost, "/personas", tok, persona.Draft{Name: "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 10002, env.Code)

	w, env = ts.do(t, http.MethodPost, "/personas", tok, persona.Draft{
		Name: "Alex", Title: "Coach", Description: "Helps with goals.",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var created struct {
		Persona persona.Persona `json:"persona"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.True(t, strings.HasPrefix(created.Persona.ID, "custom-"))

	w, _ = ts.do(t, http.MethodGet, "/personas/"+created.Persona.ID, tok, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// another user cannot see a private persona
	w, _ = ts.do(t, http.MethodGet, "/personas/"+created.Persona.ID, token(t, "u2"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatFlow_PersistsForSignedInUser(t *testing.T) {
	ts := newTestServer(t)
	tok := token(t, "u1")

	w, env := ts.do(t, http.MethodPost, "/chat/sessions", tok, gin.H{"persona_id": "maya"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var snap chat.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, chat.RoleAssistant, snap.Messages[0].Role)
	assert.Equal(t, chat.StateReady, snap.State)

	w, env = ts.do(t, http.MethodPost, "/chat/messages", tok, gin.H{"session_id": snap.SessionID, "message": "hi"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sent struct {
		Reply chat.Turn `json:"reply"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sent))
	assert.Contains(t, persona.CannedResponses("Maya"), sent.Reply.Text)

	ts.persister.Wait()

	w, env = ts.do(t, http.MethodGet, "/conversations", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var convs struct {
		Conversations []chat.Transcript `json:"conversations"`
		Count         int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &convs))
	require.Equal(t, 1, convs.Count)
	assert.Equal(t, "Chat with Maya", convs.Conversations[0].Title)
	assert.Len(t, convs.Conversations[0].Messages, 3)

	w, env = ts.do(t, http.MethodGet, "/chat/sessions/"+snap.SessionID, tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, convs.Conversations[0].ID, snap.TranscriptID)
}

func TestChat_AnonymousAndErrors(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/chat/sessions", "", gin.H{"persona_id": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40401, env.Code)

	w, env = ts.do(t, http.MethodPost, "/chat/sessions", "", gin.H{"persona_id": "theo"})
	require.Equal(t, http.StatusOK, w.Code)
	var snap chat.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	sessTok := snap.SessionToken
	require.NotEmpty(t, sessTok)

	w, env = ts.doSession(t, http.MethodPost, "/chat/messages", "", sessTok, gin.H{"session_id": snap.SessionID, "message": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 10003, env.Code)

	w, _ = ts.doSession(t, http.MethodPost, "/chat/messages", "", sessTok, gin.H{"session_id": snap.SessionID, "message": "hi"})
	assert.Equal(t, http.StatusOK, w.Code)

	// sessions are bound to their owner
	w, _ = ts.do(t, http.MethodPost, "/chat/messages", token(t, "u9"), gin.H{"session_id": snap.SessionID, "message": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = ts.do(t, http.MethodGet, "/chat/sessions/"+snap.SessionID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "another anonymous caller without the token")
	w, _ = ts.doSession(t, http.MethodDelete, "/chat/sessions/"+snap.SessionID, "", "forged", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = ts.doSession(t, http.MethodDelete, "/chat/sessions/"+snap.SessionID, "", sessTok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, env = ts.doSession(t, http.MethodPost, "/chat/messages", "", sessTok, gin.H{"session_id": snap.SessionID, "message": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40402, env.Code)

	list, err := ts.store.ListTranscripts(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, list, "anonymous chats are never persisted")
}

func TestMe_CreatesProfile(t *testing.T) {
	ts := newTestServer(t)
	w, env := ts.do(t, http.MethodGet, "/me", token(t, "u1"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		Profile profile.Profile `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "u1", data.Profile.ID)
	assert.Equal(t, "u1@example.com", data.Profile.Email)
}

func TestRelay_MountedWithCORS(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/functions/gemini-chat", nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w, _ = ts.do(t, http.MethodPost, "/functions/gemini-chat", "", gin.H{"systemPrompt": "x", "messages": []any{}, "personaName": "Maya"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Gemini API key not configured")
}

func TestNoRoute(t *testing.T) {
	ts := newTestServer(t)
	w, env := ts.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40400, env.Code)
}
