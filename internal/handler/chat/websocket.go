package chat

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/modernsoft/estock-support/backend/internal/model/chat"
)

const (
	pongWait  = 60 * time.Second
	writeWait = 10 * time.Second
)

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
}

// inboundMessage 客户端消息：turn 提交一轮，end 结束会话。
type inboundMessage struct {
	Type  string        `json:"type"`
	Text  string        `json:"text"`
	Image *imagePayload `json:"image"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// wsConn 串行化写操作，gorilla 连接不支持并发写。
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) closeNormal(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
		time.Now().Add(writeWait))
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.chatSvc.GetSession(sessionID)
	if err != nil {
		respondSessionError(w, err)
		return
	}

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}
	defer raw.Close()
	conn := &wsConn{conn: raw}
	raw.SetReadLimit(h.maxBody)

	h.log.Info("websocket connected", "session_id", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	extend := func() error {
		return raw.SetReadDeadline(time.Now().Add(h.readTimeout))
	}
	_ = extend()
	raw.SetPongHandler(func(string) error { return extend() })

	go h.pingLoop(ctx, conn, h.readTimeout*9/10)

	h.send(conn, sessionID, "session", map[string]any{
		"state":    session.State().String(),
		"messages": session.Messages(),
	})

	for {
		var msg inboundMessage
		if err := raw.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("websocket read failed", "session_id", sessionID, "error", err)
			}
			return
		}
		if done := h.handleMessage(ctx, conn, sessionID, msg); done {
			conn.closeNormal("session ended")
			return
		}
		// 一轮可能比读超时更长，期间的 pong 没有被处理。
		_ = extend()
	}
}

// handleMessage 返回 true 表示会话已结束、连接应关闭。
func (h *Handler) handleMessage(ctx context.Context, conn *wsConn, sessionID string, msg inboundMessage) bool {
	switch msg.Type {
	case "turn":
		payload := turnPayload{Text: msg.Text, Image: msg.Image}
		emit := func(m chat.Message) {
			h.send(conn, sessionID, "message", m)
		}
		if _, err := h.chatSvc.SubmitTurn(ctx, sessionID, payload.input(), emit); err != nil {
			h.sendError(conn, sessionID, err)
			return false
		}
		state := ""
		if session, err := h.chatSvc.GetSession(sessionID); err == nil {
			state = session.State().String()
		}
		h.send(conn, sessionID, "done", map[string]string{"state": state})
		return false
	case "end":
		logID, err := h.chatSvc.EndSession(ctx, sessionID)
		if err != nil {
			h.sendError(conn, sessionID, err)
			return false
		}
		h.send(conn, sessionID, "closed", map[string]string{"logId": logID})
		return true
	default:
		h.send(conn, sessionID, "error", map[string]string{"message": "unsupported message type: " + msg.Type})
		return false
	}
}

func (h *Handler) send(conn *wsConn, sessionID, kind string, data interface{}) {
	msg := outgoingMessage{
		Type:      kind,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := conn.writeJSON(msg); err != nil {
		h.log.Debug("websocket write failed", "session_id", sessionID, "type", kind, "error", err)
	}
}

func (h *Handler) sendError(conn *wsConn, sessionID string, err error) {
	status, text := sessionErrorStatus(err)
	h.send(conn, sessionID, "error", map[string]any{
		"message": err.Error(),
		"status":  status,
		"text":    text,
	})
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, conn *wsConn, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
