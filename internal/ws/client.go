package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single outbound write.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before the read
	// deadline trips. Pings go out at pingPeriod to keep it fed.
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	// sendBufferSize is the per-connection outbound queue. A subscriber
	// that falls further behind than this starts missing updates.
	sendBufferSize = 256
)

// Client represents a single WebSocket connection. A connection is
// subscribed to at most one meeting at a time; meetingID is empty while
// unsubscribed and is guarded by the hub's mutex.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	addr      string
	meetingID string
}

// readPump pumps inbound envelopes from the connection to the hub's
// handlers. It runs in its own goroutine; when it returns, the client
// is unregistered exactly once regardless of whether an explicit leave
// arrived first.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: read error from %s: %v", c.addr, err)
			}
			break
		}
		c.dispatch(raw)
	}
}

// dispatch routes one inbound envelope. Malformed payloads and unknown
// types are logged and dropped; the connection stays open either way.
func (c *Client) dispatch(raw []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("ws: invalid envelope from %s: %v", c.addr, err)
		return
	}

	switch env.Type {
	case typeJoin:
		c.hub.handleJoin(c, env.MeetingID)
	case typeUpdate:
		c.hub.handleUpdate(c, env)
	case typeLeave:
		c.hub.handleLeave(c, env.MeetingID)
	default:
		log.Printf("ws: unrecognized envelope type %q from %s", env.Type, c.addr)
	}
}

// writePump pumps outbound payloads from the send channel to the
// connection and keeps the connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel on unregister.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// trySend queues a payload for this connection without blocking. A full
// or closed queue counts as a delivery failure for this one payload; it
// never tears the connection down — cleanup belongs to the close path.
func (c *Client) trySend(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}
