package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kapu/shortlist-go/internal/command"
	"github.com/kapu/shortlist-go/internal/metrics"
	"github.com/kapu/shortlist-go/internal/recommend"
	"github.com/kapu/shortlist-go/internal/util"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 32
	wsMaxMessage = 16 << 10
)

// wsMessage is a frame sent to the browser.
type wsMessage struct {
	Type   string           `json:"type"`
	Event  *recommend.Event `json:"event,omitempty"`
	Result *command.Result  `json:"result,omitempty"`
	Error  *APIError        `json:"error,omitempty"`
	Action string           `json:"action,omitempty"`
}

type wsClient struct {
	conn     *websocket.Conn
	send     chan []byte
	logger   *zap.Logger
	stopOnce sync.Once
	done     chan struct{}
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      s.checkOrigin,
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return util.Contains(s.cfg.AllowedOrigins, "*") || util.Contains(s.cfg.AllowedOrigins, origin)
}

// handleWebSocket streams session events and accepts action frames.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	engine, err := s.sessions.Get(sessionID)
	if err != nil {
		s.respondError(w, err, nil)
		return
	}

	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade error", zap.Error(err))
		return
	}

	client := &wsClient{
		conn:   conn,
		send:   make(chan []byte, wsSendBuffer),
		logger: s.logger.With(zap.String("session", sessionID)),
		done:   make(chan struct{}),
	}

	unsubscribe, err := s.sessions.Subscribe(sessionID, func(ev recommend.Event) {
		client.enqueue(wsMessage{Type: "event", Event: &ev})
	})
	if err != nil {
		_ = conn.Close()
		return
	}

	metrics.WebSocketConnections.Inc()
	defer metrics.WebSocketConnections.Dec()
	defer unsubscribe()

	v := engine.View()
	client.enqueue(wsMessage{Type: "event", Event: &recommend.Event{Type: recommend.EventState, View: &v}})

	go client.writePump()
	client.readPump(r.Context(), func(ctx context.Context, ev command.ActionEvent) {
		results, err := s.dispatcher.Publish(ctx, engine, ev)
		msg := wsMessage{Type: "result", Action: ev.Action}
		if len(results) > 0 {
			msg.Result = results[len(results)-1]
		}
		if err != nil {
			_, code := classify(err)
			msg.Error = &APIError{Code: code, Message: err.Error()}
		}
		client.enqueue(msg)
	})
}

// enqueue drops the frame when the client is too slow to keep up.
func (c *wsClient) enqueue(msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal WebSocket frame", zap.Error(err))
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
		c.logger.Warn("WebSocket send buffer full, dropping frame")
	}
}

func (c *wsClient) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// readPump runs actions sequentially in the connection goroutine.
func (c *wsClient) readPump(ctx context.Context, handle func(context.Context, command.ActionEvent)) {
	defer c.stop()

	c.conn.SetReadLimit(wsMaxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		var ev command.ActionEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Debug("Failed to parse WebSocket frame",
				zap.Error(err),
				zap.String("data", util.TruncateString(string(data), 200)),
			)
			c.enqueue(wsMessage{Type: "result", Error: &APIError{Code: "INVALID_FRAME", Message: "invalid JSON frame"}})
			continue
		}
		handle(ctx, ev)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.stop()
	}()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
