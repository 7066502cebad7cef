package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"

	"github.com/shulebot/shulebot/core"
	"github.com/shulebot/shulebot/core/bot"
	dummyadmin "github.com/shulebot/shulebot/services/adminapi/dummy"
	inmemdb "github.com/shulebot/shulebot/storage/session/inmem"
)

var secretKey = []byte("secret")

func initApp(t *testing.T) (Server, *dummyadmin.Backend, bot.SessionRepository) {
	t.Helper()

	backend := dummyadmin.NewBackend()
	backend.SetSetup("2026", "Term 1")
	logger := core.NewStdLogger(log.New(io.Discard, "", 0))
	sessions := inmemdb.NewConversationRepository(inmemdb.NewDB())

	app := NewServer(&Options{
		Address:        ":0",
		DisableReqLogs: true,
		TestMode:       true,
		AppName:        "ShuleBot",
		SecretKey:      secretKey,
		Logger:         logger,
		BotSvc:         bot.NewService(backend, logger),
		Sessions:       sessions,
	})
	return app, backend, sessions
}

func newChatRequest(t *testing.T, token string, body interface{}) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshalling body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-School-ID", "sch-1")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, subject string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		StandardClaims: jwt.StandardClaims{Subject: subject},
	}).SignedString(secretKey)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func decodeChatResponse(t *testing.T, rec *httptest.ResponseRecorder) ChatResponse {
	t.Helper()
	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v (%s)", err, rec.Body.String())
	}
	return resp
}

func TestHome(t *testing.T) {
	app, _, _ := initApp(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to the ShuleBot API!", rec.Body.String())
}

func TestChat_requiresIntent(t *testing.T) {
	app, _, _ := initApp(t)

	req, rec := newChatRequest(t, getToken(t, "usr-1"), ChatRequest{Text: "hello"})
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"intent": "this field is required"}`, rec.Body.String())
}

func TestChat_unauthenticated(t *testing.T) {
	app, _, _ := initApp(t)

	req, rec := newChatRequest(t, "", ChatRequest{Text: "list classes", Intent: bot.IntentListClasses})
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeChatResponse(t, rec)
	assert.NotEmpty(t, resp.ConversationID)
	if assert.Len(t, resp.Replies, 1) {
		assert.Contains(t, resp.Replies[0], "sign in")
	}
}

func TestChat_conversationPersistsSlots(t *testing.T) {
	app, _, sessions := initApp(t)
	token := getToken(t, "usr-1")

	// turn 1: the student form opens and the conversation id is minted
	req, rec := newChatRequest(t, token, ChatRequest{
		Text:   "register a student",
		Intent: bot.IntentCreateStudent,
	})
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeChatResponse(t, rec)
	assert.NotEmpty(t, resp.ConversationID)
	if assert.NotEmpty(t, resp.Replies) {
		assert.Equal(t, "What is the student's full name?", resp.Replies[0])
	}
	assert.Equal(t, "student_form", resp.Slots["active_form"])

	// turn 2: the snapshot carries over via the conversation id
	req, rec = newChatRequest(t, token, ChatRequest{
		ConversationID: resp.ConversationID,
		Text:           "Joshua Mwangi",
		Intent:         "inform",
	})
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp2 := decodeChatResponse(t, rec)
	assert.Equal(t, resp.ConversationID, resp2.ConversationID)
	assert.Equal(t, "Joshua Mwangi", resp2.Slots["student_name"])

	// the stored conversation matches and carries the token's subject
	conv, err := sessions.GetConversation(context.Background(), resp.ConversationID)
	assert.NoError(t, err)
	assert.Equal(t, "usr-1", conv.UserID)
	assert.Equal(t, "Joshua Mwangi", conv.Slots.Get("student_name"))
}

func TestChat_requestSlotsOverrideStored(t *testing.T) {
	app, _, _ := initApp(t)
	token := getToken(t, "usr-1")

	// no stored conversation; the request supplies the snapshot directly
	req, rec := newChatRequest(t, token, ChatRequest{
		ConversationID: "external-1",
		Text:           "auto",
		Intent:         "inform",
		Slots: map[string]string{
			"active_form":  "student_form",
			"student_name": "Mary Atieno",
		},
	})
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeChatResponse(t, rec)
	assert.Equal(t, "AUTO", resp.Slots["admission_no"])
	assert.Equal(t, "Mary Atieno", resp.Slots["student_name"])
}
