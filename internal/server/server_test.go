package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kapu/shortlist-go/internal/command"
	"github.com/kapu/shortlist-go/internal/domain"
	"github.com/kapu/shortlist-go/internal/recommend"
)

type echoGenerator struct {
	mu    sync.Mutex
	calls int
}

func (g *echoGenerator) next() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.calls
}

// GenerateBatch answers with three numbered titles.
func (g *echoGenerator) GenerateBatch(context.Context, string) (string, error) {
	n := g.next()
	return fmt.Sprintf(`[{"title":"T%d-a","description":"a"},{"title":"T%d-b","description":"b"},{"title":"T%d-c","description":"c"}]`, n, n, n), nil
}

func (g *echoGenerator) GenerateReplacement(context.Context, string) (string, error) {
	return fmt.Sprintf(`{"title":"Remplaçant %d","description":"r"}`, g.next()), nil
}

type flatResolver struct{}

func (flatResolver) Resolve(context.Context, string, domain.Category) string { return "https://img.test/c.jpg" }

func (flatResolver) ResolveMany(_ context.Context, titles []string, _ domain.Category) []string {
	out := make([]string, len(titles))
	for i := range out {
		out[i] = "https://img.test/c.jpg"
	}
	return out
}

func newTestServer(t *testing.T, health map[string]PingFunc) (*Server, *httptest.Server) {
	t.Helper()
	gen := &echoGenerator{}
	factory := func(session *recommend.Session, notifier recommend.Notifier) *recommend.Engine {
		cfg := recommend.DefaultEngineConfig()
		cfg.FactInterval = 0
		return recommend.NewEngine(session, recommend.EngineDeps{
			Generator: gen,
			Resolver:  flatResolver{},
			Notifier:  notifier,
		}, cfg)
	}
	sessions := NewSessionManager(factory, time.Hour, zap.NewNop())
	srv := New(Config{AllowedOrigins: []string{"*"}, RequestsPerMinute: 1000}, sessions, nil, health, zap.NewNop())
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return srv, ts
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *APIError       `json:"error"`
}

func call(t *testing.T, method, url string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func createSession(t *testing.T, base string, body any) recommend.View {
	t.Helper()
	status, env := call(t, http.MethodPost, base+"/api/v1/sessions", body)
	require.Equal(t, http.StatusCreated, status)
	var v recommend.View
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestCreateSessionAndSubmit(t *testing.T) {
	_, ts := newTestServer(t, nil)

	v := createSession(t, ts.URL, map[string]string{"category": "movie"})
	assert.Equal(t, domain.CategoryMovie, v.Category)
	assert.Equal(t, recommend.StateIdle, v.State)
	require.NotEmpty(t, v.SessionID)

	base := ts.URL + "/api/v1/sessions/" + v.SessionID
	status, env := call(t, http.MethodPost, base+"/actions/submit", map[string]any{"query": "Heat"})
	require.Equal(t, http.StatusOK, status)

	var result command.Result
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, recommend.StateReady, result.View.State)
	assert.Len(t, result.View.Slots, 3)

	status, env = call(t, http.MethodPost, base+"/actions/reject", map[string]any{"index": 0})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "Remplaçant 2", result.View.Slots[0].Recommendation.Title)
	assert.Equal(t, []string{"T1-a"}, result.View.Exclusions)

	status, env = call(t, http.MethodGet, base+"/", nil)
	require.Equal(t, http.StatusOK, status)
	var fetched recommend.View
	require.NoError(t, json.Unmarshal(env.Data, &fetched))
	assert.Equal(t, result.View.Exclusions, fetched.Exclusions)
}

func TestActionErrors(t *testing.T) {
	_, ts := newTestServer(t, nil)
	v := createSession(t, ts.URL, nil)
	base := ts.URL + "/api/v1/sessions/" + v.SessionID

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"index out of range", "/actions/reject", map[string]any{"index": 7}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"no slot yet", "/actions/accept", map[string]any{"index": 0}, http.StatusBadRequest, "INVALID_ACTION"},
		{"empty query", "/actions/submit", map[string]any{"query": " "}, http.StatusBadRequest, "INVALID_ACTION"},
		{"unknown action", "/actions/dance", nil, http.StatusNotFound, "NOT_FOUND"},
		{"library needs identity", "/library", nil, http.StatusUnauthorized, "NO_IDENTITY"},
		{"bad rating", "/actions/rating", map[string]any{"title": "x", "rating": 9}, http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := http.MethodPost
			if tt.path == "/library" {
				method = http.MethodGet
			}
			status, env := call(t, method, base+tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}

	status, _ := call(t, http.MethodGet, ts.URL+"/api/v1/sessions/missing/", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, http.MethodPost, ts.URL+"/api/v1/sessions", map[string]string{"category": "podcast"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCategoriesAndHealth(t *testing.T) {
	_, ts := newTestServer(t, map[string]PingFunc{
		"store": func(context.Context) error { return nil },
		"cache": func(context.Context) error { return errors.New("down") },
	})

	status, env := call(t, http.MethodGet, ts.URL+"/api/v1/categories", nil)
	require.Equal(t, http.StatusOK, status)
	var cats []CategoryInfo
	require.NoError(t, json.Unmarshal(env.Data, &cats))
	require.Len(t, cats, len(domain.AllCategories))
	assert.Equal(t, "platform", cats[0].SubFilterKind)

	status, env = call(t, http.MethodGet, ts.URL+"/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, string(env.Data), `"cache":"down"`)
}

func TestWebSocketStreamsEvents(t *testing.T) {
	_, ts := newTestServer(t, nil)
	v := createSession(t, ts.URL, map[string]string{"category": "anime"})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/sessions/" + v.SessionID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() wsMessage {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg wsMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	first := read()
	require.Equal(t, "event", first.Type)
	assert.Equal(t, recommend.StateIdle, first.Event.View.State)

	require.NoError(t, conn.WriteJSON(command.ActionEvent{Action: "submit", Params: map[string]any{"query": "Mushishi"}}))

	var states []recommend.State
	var result *wsMessage
	for result == nil {
		msg := read()
		switch msg.Type {
		case "event":
			if msg.Event.Type == recommend.EventState {
				states = append(states, msg.Event.View.State)
			}
		case "result":
			m := msg
			result = &m
		}
	}
	assert.Equal(t, []recommend.State{recommend.StateGenerating, recommend.StateReady}, states)
	assert.Nil(t, result.Error)
	assert.Len(t, result.Result.View.Slots, 3)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("nope")))
	msg := read()
	require.NotNil(t, msg.Error)
	assert.Equal(t, "INVALID_FRAME", msg.Error.Code)
}

func TestSessionEviction(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	m := srv.sessions
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	idle, _, err := m.Create(domain.CategoryBook, "")
	require.NoError(t, err)
	now = now.Add(30 * time.Minute)
	fresh, _, err := m.Create(domain.CategoryBook, "alice")
	require.NoError(t, err)

	now = now.Add(45 * time.Minute)
	assert.Equal(t, 1, m.Evict())

	_, err = m.Get(idle)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	engine, err := m.Get(fresh)
	require.NoError(t, err)
	assert.Equal(t, "alice", engine.View().Identity)
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	m := srv.sessions
	id, engine, err := m.Create(domain.CategoryBook, "")
	require.NoError(t, err)

	var got []recommend.Event
	unsubscribe, err := m.Subscribe(id, func(ev recommend.Event) { got = append(got, ev) })
	require.NoError(t, err)

	_, err = engine.SignIn("bob")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].View.Identity)

	unsubscribe()
	_, _ = engine.SignOut()
	assert.Len(t, got, 1)

	_, err = m.Subscribe("missing", func(recommend.Event) {})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
