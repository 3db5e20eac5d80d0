package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/app/chat"
	"parley/internal/app/store"
	"parley/internal/configs"
	"parley/internal/pkg/auth/jwt"
	"parley/internal/pkg/errs"
	"parley/internal/pkg/resp"
)

func testAppConfig() *configs.AppConfig {
	return &configs.AppConfig{
		Environment:       "development",
		Port:              8080,
		JWTSecret:         "test-secret",
		RoomCatalog:       []string{"general"},
		AllowDynamicRooms: true,
		HistoryLimit:      200,
		HistoryTail:       50,
		OutboxLimit:       256,
		MaxTextLen:        500,
		HandshakeTimeout:  time.Second,
		HeartbeatInterval: time.Second,
		HeartbeatGrace:    2,
		SendRate:          1000,
		SendBurst:         1000,
	}
}

func newTestDeps(t *testing.T) *AppDeps {
	t.Helper()

	cfg := testAppConfig()
	router := chat.NewRouter(cfg, store.NewMemoryStore())
	t.Cleanup(router.Shutdown)

	return &AppDeps{Router: router, Config: cfg}
}

func postLogin(t *testing.T, handlerFunc http.HandlerFunc, body string) *resp.JSONResponse {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handlerFunc(rec, req)

	var envelope resp.JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return &envelope
}

func TestHandleLoginIssuesValidToken(t *testing.T) {
	deps := newTestDeps(t)

	envelope := postLogin(t, HandleLogin(deps), `{"username":"alice"}`)
	require.Equal(t, 0, envelope.Code)

	data := envelope.Data.(map[string]any)
	assert.Equal(t, "alice", data["username"])
	assert.NotEmpty(t, data["userId"])

	payload, err := jwt.ParseToken(data["token"].(string), deps.Config.JWTSecret)
	require.NoError(t, err)
	assert.Equal(t, data["userId"], payload.ID)
	assert.Equal(t, "alice", payload.Username)
}

func TestHandleLoginTrimsUsername(t *testing.T) {
	deps := newTestDeps(t)

	envelope := postLogin(t, HandleLogin(deps), `{"username":"  alice  "}`)
	require.Equal(t, 0, envelope.Code)

	data := envelope.Data.(map[string]any)
	assert.Equal(t, "alice", data["username"])
}

func TestHandleLoginAcceptsMultibyteUsername(t *testing.T) {
	deps := newTestDeps(t)

	// 20 runes, 40 bytes. The length bound counts runes.
	name := strings.Repeat("é", 20)
	envelope := postLogin(t, HandleLogin(deps), `{"username":"`+name+`"}`)

	require.Equal(t, 0, envelope.Code)
	assert.Equal(t, name, envelope.Data.(map[string]any)["username"])
}

func TestHandleLoginRejectsUsernameOverRuneLimit(t *testing.T) {
	deps := newTestDeps(t)

	envelope := postLogin(t, HandleLogin(deps), `{"username":"`+strings.Repeat("é", 33)+`"}`)
	assert.Equal(t, errs.ErrInvalidUsername, envelope.Code)
}

func TestHandleLoginRejectsInvalidUsernames(t *testing.T) {
	deps := newTestDeps(t)

	for _, body := range []string{
		`{"username":""}`,
		`{"username":"   "}`,
		`{"username":"this-name-is-far-too-long-to-be-a-username"}`,
	} {
		envelope := postLogin(t, HandleLogin(deps), body)
		assert.Equal(t, errs.ErrInvalidUsername, envelope.Code, "body %s accepted", body)
	}
}

func TestHandleLoginRejectsMalformedBody(t *testing.T) {
	deps := newTestDeps(t)

	envelope := postLogin(t, HandleLogin(deps), `{"username":`)
	assert.Equal(t, errs.ErrInvalidJSONFormat, envelope.Code)

	envelope = postLogin(t, HandleLogin(deps), `{"username":"alice","extra":true}`)
	assert.Equal(t, errs.ErrInvalidJSONFormat, envelope.Code)
}

func TestHandleLoginTwoSessionsMayShareUsername(t *testing.T) {
	deps := newTestDeps(t)

	first := postLogin(t, HandleLogin(deps), `{"username":"alice"}`)
	second := postLogin(t, HandleLogin(deps), `{"username":"alice"}`)

	require.Equal(t, 0, first.Code)
	require.Equal(t, 0, second.Code)

	// Username is display-only; the id is the true key.
	idA := first.Data.(map[string]any)["userId"]
	idB := second.Data.(map[string]any)["userId"]
	assert.NotEqual(t, idA, idB)
}
