package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/riftlens/riftlens/internal/core/session"
	apperrors "github.com/riftlens/riftlens/internal/errors"
	"github.com/riftlens/riftlens/internal/metrics"
	"github.com/riftlens/riftlens/internal/observability"
	servermw "github.com/riftlens/riftlens/internal/server/middleware"
)

// Inbound message types
const (
	MessageCurrentGame = "get:currentgame"
	MessageRandomGame  = "get:randomgame"
	MessageUnsubscribe = "unsubscribe"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4 << 10
)

var (
	errConnClosed   = errors.New("connection closed")
	errSlowConsumer = errors.New("viewer send buffer full")
)

// Request is an inbound viewer message.
type Request struct {
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`
	Region string `json:"region,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// viewers connect from any origin; the socket carries no credentials
	CheckOrigin: func(*http.Request) bool { return true },
}

// viewer is one websocket connection. It satisfies session.Conn.
type viewer struct {
	id   string
	ws   *websocket.Conn
	send chan session.Event
	// requests are resolved one at a time, in arrival order
	requests chan Request
	limiter  *rate.Limiter

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeCode int
}

func newViewer(ws *websocket.Conn, deps Deps, requestID string) *viewer {
	// errors reported to the viewer correlate with the upgrade request
	ctx, cancel := context.WithCancel(servermw.WithRequestID(context.Background(), requestID))
	return &viewer{
		id:        uuid.New().String(),
		ws:        ws,
		send:      make(chan session.Event, deps.SendBuffer),
		requests:  make(chan Request, deps.InboundBurst),
		limiter:   rate.NewLimiter(rate.Limit(deps.InboundRate), deps.InboundBurst),
		ctx:       ctx,
		cancel:    cancel,
		closeCode: websocket.CloseNormalClosure,
	}
}

func (v *viewer) ID() string { return v.id }

// Send queues ev without blocking. A full buffer closes the connection.
func (v *viewer) Send(ev session.Event) error {
	if v.ctx.Err() != nil {
		return errConnClosed
	}
	select {
	case v.send <- ev:
		return nil
	default:
		v.close(websocket.CloseTryAgainLater)
		return errSlowConsumer
	}
}

func (v *viewer) close(code int) {
	v.closeOnce.Do(func() {
		v.closeCode = code
		v.cancel()
	})
}

func (v *viewer) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = v.ws.Close()
	}()

	for {
		select {
		case ev := <-v.send:
			_ = v.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.ws.WriteJSON(ev); err != nil {
				observability.Debug("Websocket write failed", zap.String("conn_id", v.id), zap.Error(err))
				v.close(websocket.CloseAbnormalClosure)
				return
			}
		case <-ticker.C:
			_ = v.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				v.close(websocket.CloseAbnormalClosure)
				return
			}
		case <-v.ctx.Done():
			msg := websocket.FormatCloseMessage(v.closeCode, "")
			_ = v.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
	}
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied
		observability.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}

	v := newViewer(ws, s.deps, servermw.GetRequestID(r.Context()))
	metrics.SetActiveConnections(s.viewers.Add(1))
	observability.Debug("Viewer connected",
		zap.String("conn_id", v.id),
		zap.String("request_id", servermw.GetRequestID(r.Context())),
		zap.String("remote", r.RemoteAddr))

	go v.writeLoop()
	go s.serveRequests(v)
	defer func() {
		v.close(websocket.CloseNormalClosure)
		s.deps.Sessions.Unsubscribe(v.id)
		metrics.SetActiveConnections(s.viewers.Add(-1))
		observability.Debug("Viewer disconnected", zap.String("conn_id", v.id))
	}()

	s.readLoop(v)
}

func (s *Server) readLoop(v *viewer) {
	v.ws.SetReadLimit(maxMessageSize)
	_ = v.ws.SetReadDeadline(time.Now().Add(pongWait))
	v.ws.SetPongHandler(func(string) error {
		return v.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := v.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				observability.Debug("Websocket read failed", zap.String("conn_id", v.id), zap.Error(err))
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			metrics.RecordViewerError(apperrors.CodeInvalidInput)
			_ = v.Send(session.RequestError(apperrors.CodeInvalidInput, "Malformed request"))
			continue
		}
		s.accept(v, req)
	}
}

// accept throttles match requests and hands them to the viewer's worker.
func (s *Server) accept(v *viewer, req Request) {
	switch req.Type {
	case MessageCurrentGame, MessageRandomGame, MessageUnsubscribe:
	default:
		metrics.RecordViewerError(apperrors.CodeInvalidInput)
		_ = v.Send(session.RequestError(apperrors.CodeInvalidInput, "Unknown request type"))
		return
	}

	if req.Type != MessageUnsubscribe && !v.limiter.Allow() {
		metrics.RecordInboundThrottled()
		_ = v.Send(session.RequestError(apperrors.CodeRateLimited, "Too many requests, slow down"))
		return
	}

	select {
	case v.requests <- req:
	default:
		metrics.RecordInboundThrottled()
		_ = v.Send(session.RequestError(apperrors.CodeRateLimited, "Too many requests, slow down"))
	}
}

func (s *Server) serveRequests(v *viewer) {
	for {
		select {
		case <-v.ctx.Done():
			return
		case req := <-v.requests:
			s.handleRequest(v, req)
		}
	}
}

func (s *Server) handleRequest(v *viewer, req Request) {
	if req.Type == MessageUnsubscribe {
		s.deps.Sessions.Unsubscribe(v.id)
		return
	}

	ctx, cancel := context.WithTimeout(v.ctx, s.deps.ResolveTimeout)
	defer cancel()

	var (
		m   *session.Match
		err error
	)
	if req.Type == MessageRandomGame {
		m, err = s.deps.Resolver.ResolveAny(ctx, req.Region)
	} else {
		m, err = s.deps.Resolver.ResolveByPlayer(ctx, req.Name, req.Region)
	}
	if err == nil {
		_, err = s.deps.Sessions.Subscribe(v, *m)
	}
	if v.ctx.Err() != nil {
		// the viewer left while the request was in flight
		s.deps.Sessions.Unsubscribe(v.id)
		return
	}
	if err != nil {
		envelope := apperrors.FromResolveError(ctx, err)
		apperrors.LogEnvelope(envelope,
			zap.String("conn_id", v.id),
			zap.String("request", req.Type))
		metrics.RecordViewerError(envelope.Code)
		_ = v.Send(session.RequestError(envelope.Code, envelope.Message))
		return
	}

	observability.Debug("Viewer subscribed",
		zap.String("conn_id", v.id),
		zap.Int64("match_id", m.ID),
		zap.String("region", m.Region))
}
