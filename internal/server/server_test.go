package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftlens/riftlens/internal/config"
	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/core/engine"
	"github.com/riftlens/riftlens/internal/core/match"
	"github.com/riftlens/riftlens/internal/core/session"
	"github.com/riftlens/riftlens/internal/core/stages"
	apperrors "github.com/riftlens/riftlens/internal/errors"
)

type stubRunner struct {
	name    core.Stage
	payload any
}

func (r stubRunner) Name() core.Stage { return r.name }

func (r stubRunner) Run(ctx context.Context, sc *stages.Context) (any, error) {
	return r.payload, nil
}

type stubResolver struct {
	mu      sync.Mutex
	matches map[string]int64
	calls   int
}

func (r *stubResolver) ResolveByPlayer(ctx context.Context, name, region string) (*session.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	id, ok := r.matches[name]
	if !ok {
		return nil, match.ErrSummonerNotFound
	}
	return &session.Match{ID: id, Region: "euw"}, nil
}

func (r *stubResolver) ResolveAny(ctx context.Context, region string) (*session.Match, error) {
	return nil, match.ErrNoActiveGame
}

type stubQueue struct{ depth int }

func (q stubQueue) Len() int      { return q.depth }
func (q stubQueue) Closed() bool { return false }

type stubQuota struct{}

func (stubQuota) Snapshot() engine.LimiterSnapshot {
	return engine.LimiterSnapshot{
		Key:     "upstream",
		Windows: []engine.WindowUsage{{MaxCalls: 10, Window: 10 * time.Second, Used: 3}},
	}
}

func newTestServer(t *testing.T, deps Deps) (*Server, *session.Registry) {
	t.Helper()
	registry := session.NewRegistry(session.RegistryOptions{Pipeline: []stages.Runner{
		stubRunner{name: core.StageCore, payload: map[string]string{"matchId": "42"}},
		stubRunner{name: core.StageLeague, payload: []string{"gold"}},
	}})
	t.Cleanup(registry.Close)

	deps.Sessions = registry
	if deps.Resolver == nil {
		deps.Resolver = &stubResolver{matches: map[string]int64{"faker": 42}}
	}
	deps.Limiter = stubQuota{}
	deps.Queue = stubQueue{depth: 2}
	return New(config.ServerConfig{Host: "127.0.0.1"}, deps), registry
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New(config.ServerConfig{Host: "127.0.0.1"}, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestSessionRoutes(t *testing.T) {
	srv, registry := newTestServer(t, Deps{})
	s, _, err := registry.FindOrCreate(session.Match{ID: 42, Region: "euw"})
	require.NoError(t, err)
	<-s.Done()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list SessionsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, int64(42), list.Sessions[0].MatchID)
	assert.Equal(t, "completed", list.Sessions[0].State)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/42", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var snap session.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Equal(t, []core.Stage{core.StageCore, core.StageLeague}, snap.Stages)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/7", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuotaRoute(t *testing.T) {
	srv, _ := newTestServer(t, Deps{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/quota", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var quota QuotaResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&quota))
	assert.Equal(t, 2, quota.QueueDepth)
	assert.True(t, quota.QueueOpen)
	require.Len(t, quota.Limiter.Windows, 1)
	assert.Equal(t, 3, quota.Limiter.Windows[0].Used)
}

func TestQuotaRouteWithoutLimiter(t *testing.T) {
	srv := New(config.ServerConfig{}, Deps{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/quota", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type stubAverages struct {
	asked []int64
}

func (a *stubAverages) ChampionAverages(ctx context.Context, championIDs []int64) ([]core.ChampionAverage, error) {
	a.asked = championIDs
	return []core.ChampionAverage{{ChampionID: 22, Games: 2, WinRate: 0.5, Kills: 7}}, nil
}

func TestChampionAveragesRoute(t *testing.T) {
	averages := &stubAverages{}
	srv, _ := newTestServer(t, Deps{Averages: averages})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/champions/averages?ids=22,%2064", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body AveragesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, []int64{22, 64}, averages.asked)
	require.Len(t, body.Champions, 1)
	assert.Equal(t, 2, body.Champions[0].Games)
	assert.InDelta(t, 0.5, body.Champions[0].WinRate, 1e-9)

	for _, target := range []string{"/api/v1/champions/averages", "/api/v1/champions/averages?ids=22,x"} {
		rec = httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestChampionAveragesRouteWithoutStore(t *testing.T) {
	srv := New(config.ServerConfig{}, Deps{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/champions/averages?ids=1", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type wireEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dial(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readEvent(t *testing.T, ws *websocket.Conn) wireEvent {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev wireEvent
	require.NoError(t, ws.ReadJSON(&ev))
	return ev
}

func errorCode(t *testing.T, ev wireEvent) string {
	t.Helper()
	require.Equal(t, core.EventError, ev.Event)
	var payload session.ErrorPayload
	require.NoError(t, json.Unmarshal(ev.Data, &payload))
	assert.Equal(t, session.ErrorTypeRequest, payload.Type)
	return payload.Code
}

func TestWebsocketStreamsSessionEvents(t *testing.T) {
	srv, registry := newTestServer(t, Deps{})
	ws := dial(t, srv)

	require.NoError(t, ws.WriteJSON(Request{Type: MessageCurrentGame, Name: "faker"}))

	assert.Equal(t, "core", readEvent(t, ws).Event)
	assert.Equal(t, "league", readEvent(t, ws).Event)

	s, ok := registry.Get(42)
	require.True(t, ok)
	assert.Equal(t, 1, s.Subscribers())

	require.NoError(t, ws.WriteJSON(Request{Type: MessageUnsubscribe}))
	require.Eventually(t, func() bool { return s.Subscribers() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestWebsocketDisconnectUnsubscribes(t *testing.T) {
	srv, registry := newTestServer(t, Deps{})
	ws := dial(t, srv)

	require.NoError(t, ws.WriteJSON(Request{Type: MessageCurrentGame, Name: "faker"}))
	readEvent(t, ws)
	s, ok := registry.Get(42)
	require.True(t, ok)

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool { return s.Subscribers() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestWebsocketRequestErrors(t *testing.T) {
	srv, _ := newTestServer(t, Deps{})
	ws := dial(t, srv)

	require.NoError(t, ws.WriteJSON(Request{Type: MessageCurrentGame, Name: "nobody"}))
	assert.Equal(t, apperrors.CodeSummonerNotFound, errorCode(t, readEvent(t, ws)))

	require.NoError(t, ws.WriteJSON(Request{Type: MessageRandomGame}))
	assert.Equal(t, apperrors.CodeNoActiveGame, errorCode(t, readEvent(t, ws)))

	require.NoError(t, ws.WriteJSON(Request{Type: "get:everything"}))
	assert.Equal(t, apperrors.CodeInvalidInput, errorCode(t, readEvent(t, ws)))

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, apperrors.CodeInvalidInput, errorCode(t, readEvent(t, ws)))
}

func TestWebsocketThrottlesRequests(t *testing.T) {
	resolver := &stubResolver{matches: map[string]int64{}}
	srv, _ := newTestServer(t, Deps{Resolver: resolver, InboundRate: 0.001, InboundBurst: 1})
	ws := dial(t, srv)

	require.NoError(t, ws.WriteJSON(Request{Type: MessageCurrentGame, Name: "nobody"}))
	require.NoError(t, ws.WriteJSON(Request{Type: MessageCurrentGame, Name: "nobody"}))

	codes := []string{errorCode(t, readEvent(t, ws)), errorCode(t, readEvent(t, ws))}
	assert.ElementsMatch(t, []string{apperrors.CodeSummonerNotFound, apperrors.CodeRateLimited}, codes)

	resolver.mu.Lock()
	defer resolver.mu.Unlock()
	assert.Equal(t, 1, resolver.calls)
}

func TestViewerSendFailsWhenBufferFull(t *testing.T) {
	v := &viewer{id: "slow", send: make(chan session.Event, 1)}
	v.ctx, v.cancel = context.WithCancel(context.Background())

	require.NoError(t, v.Send(session.Event{Name: "core"}))
	assert.ErrorIs(t, v.Send(session.Event{Name: "league"}), errSlowConsumer)
	assert.Error(t, v.ctx.Err(), "a slow viewer is closed")
	assert.Equal(t, websocket.CloseTryAgainLater, v.closeCode)
	assert.ErrorIs(t, v.Send(session.Event{Name: "champion"}), errConnClosed)
}
