package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-integrations/internal/auth"
)

// Message types of the WebSocket protocol.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	wsSendBufferSize = 256
)

// WSMessage is one frame sent to or from a client.
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	EventType string          `json:"event_type,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// outbound is the server side of WSMessage, with an unencoded payload.
type outbound struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp"`
	Payload   any    `json:"payload,omitempty"`
}

func newEvent(event string, payload any) outbound {
	return outbound{
		Type:      WSTypeEvent,
		EventType: event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
}

// WSSubscribePayload selects entries for subscribe and unsubscribe.
// Leaving both lists empty means every entry.
type WSSubscribePayload struct {
	Domains  []string `json:"domains,omitempty"`
	EntryIDs []string `json:"entry_ids,omitempty"`
}

// WSClient is one connected WebSocket client.
type WSClient struct {
	hub     *Hub
	conn    *websocket.Conn
	subject string
	role    auth.Role

	mu     sync.Mutex
	send   chan []byte
	filter entryFilter
	closed bool
}

func newWSClient(hub *Hub, conn *websocket.Conn, claims *auth.Claims) *WSClient {
	return &WSClient{
		hub:     hub,
		conn:    conn,
		subject: claims.Subject,
		role:    claims.Role,
		send:    make(chan []byte, wsSendBufferSize),
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// handleWebSocket upgrades the connection. Browsers cannot set headers on
// a WebSocket handshake, so the token comes in the token query parameter.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeUnauthorized(w, "token query parameter is required")
		return
	}
	claims, err := auth.ParseToken(token, s.secCfg.JWT.Secret)
	if err != nil {
		writeUnauthorized(w, "invalid or expired token")
		return
	}
	if !auth.HasPermission(claims.Role, auth.PermEntryRead) {
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "insufficient permissions")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(s.hub, conn, claims)
	s.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

// wants reports whether the client subscribed to the entry.
func (c *WSClient) wants(domain, entryID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter.matches(domain, entryID)
}

// trySend queues data without blocking. It reports false when the client
// is gone or its buffer is full.
func (c *WSClient) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close shuts the send channel so writePump exits. It reports whether
// this call did the closing.
func (c *WSClient) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.send)
	return true
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	cfg := c.hub.cfg
	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	wait := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "subject", c.subject, "error", err)
			}
			return
		}
		// Browsers do not always answer protocol pings, so any frame counts.
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(wait))
		c.handleMessage(data)
	}
}

func (c *WSClient) writePump() {
	timeout := time.Duration(c.hub.cfg.PongTimeout) * time.Second
	ticker := time.NewTicker(time.Duration(c.hub.cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			//nolint:errcheck // Write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(timeout))
			if !ok {
				//nolint:errcheck // Best-effort close frame
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(timeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply("", WSTypeError, errorPayload("invalid JSON message"))
		return
	}

	switch msg.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var sel WSSubscribePayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &sel); err != nil {
				c.reply(msg.ID, WSTypeError, errorPayload("invalid "+msg.Type+" payload"))
				return
			}
		}
		if msg.Type == WSTypeSubscribe {
			c.subscribe(msg.ID, sel)
		} else {
			c.unsubscribe(msg.ID, sel)
		}
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.reply(msg.ID, WSTypeError, errorPayload("unknown message type: "+msg.Type))
	}
}

// subscribe widens the filter, acknowledges, then replays the cached
// state of every newly matching entry.
func (c *WSClient) subscribe(id string, sel WSSubscribePayload) {
	var added entryFilter
	added.add(sel.Domains, sel.EntryIDs)

	c.mu.Lock()
	c.filter.add(sel.Domains, sel.EntryIDs)
	c.mu.Unlock()

	states := c.hub.States(added)
	c.hub.logger.Info("websocket client subscribed", "subject", c.subject,
		"domains", sel.Domains, "entry_ids", sel.EntryIDs)
	c.reply(id, WSTypeResponse, map[string]any{
		"subscribed": sel,
		"replayed":   len(states),
	})

	for _, p := range states {
		data, err := json.Marshal(newEvent(EventStateChanged, p))
		if err == nil {
			c.trySend(data)
		}
	}
}

func (c *WSClient) unsubscribe(id string, sel WSSubscribePayload) {
	c.mu.Lock()
	c.filter.remove(sel.Domains, sel.EntryIDs)
	none := c.filter.empty()
	c.mu.Unlock()

	c.reply(id, WSTypeResponse, map[string]any{
		"unsubscribed": sel,
		"subscribed":   !none,
	})
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(outbound{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func errorPayload(message string) map[string]string {
	return map[string]string{"message": message}
}
