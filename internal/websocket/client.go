package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checks are left to the reverse proxy in front of the API.
		return true
	},
}

// Client is one live feed connection. A client holds team subscriptions in
// the hub and receives every notification composed for those teams.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger
}

// command is the inbound protocol: subscribe/unsubscribe to a team's feed,
// plus an application-level ping.
type command struct {
	Type   string `json:"type"`
	TeamID string `json:"team_id,omitempty"`
}

// NewClient creates a feed client over an upgraded connection
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		id:     uuid.New().String(),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		logger: logger,
	}
}

// readPump consumes commands from the connection until it drops, then
// unregisters the client so the hub releases its subscriptions.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "client_id", c.id, "error", err)
			}
			break
		}

		var cmd command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.logger.Warn("invalid command", "client_id", c.id, "error", err)
			c.enqueue(Message{
				Type: MessageTypeError,
				Data: map[string]string{"error": "invalid command"},
			})
			continue
		}
		c.handleCommand(cmd)
	}
}

func (c *Client) handleCommand(cmd command) {
	switch cmd.Type {
	case MessageTypeSubscribe:
		if cmd.TeamID == "" {
			c.enqueue(Message{
				Type: MessageTypeError,
				Data: map[string]string{"error": "team_id required for subscribe"},
			})
			return
		}
		c.hub.Subscribe(c, cmd.TeamID)
		c.enqueue(Message{
			Type:   "subscribed",
			TeamID: cmd.TeamID,
			Data:   map[string]string{"status": "ok"},
		})

	case MessageTypeUnsubscribe:
		if cmd.TeamID != "" {
			c.hub.Unsubscribe(c, cmd.TeamID)
			c.enqueue(Message{
				Type:   "unsubscribed",
				TeamID: cmd.TeamID,
				Data:   map[string]string{"status": "ok"},
			})
		}

	case MessageTypePing:
		c.enqueue(Message{Type: MessageTypePong})

	default:
		c.logger.Debug("unknown command type", "client_id", c.id, "type", cmd.Type)
	}
}

// enqueue queues an outbound message, dropping it when the client cannot
// keep up. The pumps never block on a slow reader.
func (c *Client) enqueue(msg Message) {
	msg.Timestamp = time.Now()
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal message", "client_id", c.id, "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// writePump drains the send queue to the connection and keeps the link
// alive with protocol pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the queue on unregister.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(data)

			// Flush whatever else is queued into the same frame.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request and attaches the client to the hub. A
// team_id query parameter subscribes the client to that team's feed
// immediately, without a separate subscribe command.
func ServeWs(hub *Hub, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(hub, conn, logger)
	hub.Register(client)
	if teamID := r.URL.Query().Get("team_id"); teamID != "" {
		hub.Subscribe(client, teamID)
	}

	go client.writePump()
	go client.readPump()

	logger.Debug("feed client connected", "client_id", client.id)
}
