// Package ws implements the WebSocket side of the meeting sync service:
// a hub that tracks which connection is subscribed to which meeting,
// routes inbound envelopes to registry operations, and fans mutation
// broadcasts out to every subscriber of the affected meeting.
package ws

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zoneclock/meeting-sync/internal/models"
	"github.com/zoneclock/meeting-sync/internal/registry"
)

const defaultMaxMessageSize = 64 * 1024

// MeetingSource is the slice of the registry the hub needs.
type MeetingSource interface {
	Get(meetingID string) (models.MeetingRecord, error)
	Replace(meetingID string, record models.MeetingRecord) (models.MeetingRecord, error)
}

// Config carries hub construction parameters.
type Config struct {
	// AllowedOrigins is the Origin allow-list for upgrade requests.
	// Empty or containing "*" allows every origin.
	AllowedOrigins []string

	// MaxMessageSize caps inbound envelope size in bytes.
	MaxMessageSize int64

	// Enrich, when set, recomputes the denormalized participant display
	// fields on a record before it is sent to clients.
	Enrich func(*models.MeetingRecord)
}

// broadcastMsg pairs a meeting id with the serialized update envelope
// to deliver to that meeting's subscribers.
type broadcastMsg struct {
	meetingID string
	payload   []byte
}

// Hub maintains the set of active connections and the per-meeting
// subscription sets. The Run loop serializes registration, cleanup, and
// broadcast fan-out.
type Hub struct {
	source MeetingSource
	enrich func(*models.MeetingRecord)

	maxMessageSize int64
	upgrader       websocket.Upgrader

	// clients is the set of all registered connections; membership
	// guarantees the send channel is closed exactly once.
	clients map[*Client]bool

	// subscriptions maps meeting ids to sets of subscribed connections.
	subscriptions map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a hub. The meeting source is attached separately with
// SetSource because the registry needs the hub as its broadcaster.
func NewHub(cfg Config) *Hub {
	maxSize := cfg.MaxMessageSize
	if maxSize <= 0 {
		maxSize = defaultMaxMessageSize
	}

	origins := newOriginChecker(cfg.AllowedOrigins)
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		enrich:         cfg.Enrich,
		maxMessageSize: maxSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		broadcast:     make(chan broadcastMsg, 256),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
}

// SetSource attaches the meeting registry the hub resolves join and
// update envelopes against. Must be called before ServeWS.
func (h *Hub) SetSource(source MeetingSource) {
	h.source = source
}

// Run starts the hub's main event loop. It must be called in a goroutine.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.closeAllConnections()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("ws: client connected from %s, total %d", client.addr, count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.dropSubscriptionLocked(client)
				count := len(h.clients)
				h.mu.Unlock()
				close(client.send)
				log.Printf("ws: client disconnected from %s, total %d", client.addr, count)
			} else {
				h.mu.Unlock()
			}

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// deliver attempts one non-blocking send per subscriber. A failed send
// is logged and skipped; it does not remove the subscription, since a
// full buffer is not proof of disconnection — removal belongs to the
// close path alone.
func (h *Hub) deliver(msg broadcastMsg) {
	h.mu.RLock()
	subs := h.subscriptions[msg.meetingID]
	targets := make([]*Client, 0, len(subs))
	for client := range subs {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if !client.trySend(msg.payload) {
			log.Printf("ws: dropped update for meeting %s to %s: send buffer full", msg.meetingID, client.addr)
		}
	}
}

// BroadcastMeeting serializes the record into a meeting-update envelope
// once and queues it for fan-out to the meeting's subscribers. The
// registry calls this while holding the meeting's lock, so envelopes
// for one meeting are queued in mutation order.
func (h *Hub) BroadcastMeeting(meetingID string, record models.MeetingRecord) {
	if h.enrich != nil {
		h.enrich(&record)
	}

	payload, err := marshalMeetingEnvelope(typeMeetingUpdate, record)
	if err != nil {
		log.Printf("ws: marshal update for meeting %s: %v", meetingID, err)
		return
	}

	h.broadcast <- broadcastMsg{meetingID: meetingID, payload: payload}
}

// handleJoin subscribes the connection to a meeting and sends it a
// full snapshot. A connection holds at most one subscription; switching
// meetings requires an explicit leave first.
func (h *Hub) handleJoin(c *Client, meetingID string) {
	if meetingID == "" {
		log.Printf("ws: join without meetingId from %s", c.addr)
		return
	}

	h.mu.RLock()
	current := c.meetingID
	h.mu.RUnlock()

	if current != "" && current != meetingID {
		h.sendError(c, "already subscribed to another meeting; send leave first")
		return
	}

	record, err := h.source.Get(meetingID)
	if err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			log.Printf("ws: join %s from %s: %v", meetingID, c.addr, err)
		}
		h.sendError(c, "meeting not found: "+meetingID)
		return
	}

	if current == "" {
		h.mu.Lock()
		c.meetingID = meetingID
		if h.subscriptions[meetingID] == nil {
			h.subscriptions[meetingID] = make(map[*Client]bool)
		}
		h.subscriptions[meetingID][c] = true
		h.mu.Unlock()
	}

	// Repeat joins for the same meeting just resend the snapshot.
	h.sendSnapshot(c, record)
}

// handleUpdate replaces the stored record wholesale. The sender does
// not need to be subscribed; the broadcast reaches whoever is.
func (h *Hub) handleUpdate(c *Client, env inboundEnvelope) {
	if env.MeetingID == "" || env.Meeting == nil {
		log.Printf("ws: update without meetingId or meeting from %s", c.addr)
		return
	}

	if _, err := h.source.Replace(env.MeetingID, *env.Meeting); err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			log.Printf("ws: update %s from %s: %v", env.MeetingID, c.addr, err)
		}
		h.sendError(c, "meeting not found: "+env.MeetingID)
	}
}

// handleLeave removes the connection from the meeting's subscription
// set. Leaving twice, or leaving a meeting never joined, is a no-op.
func (h *Hub) handleLeave(c *Client, meetingID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if meetingID == "" || c.meetingID != meetingID {
		return
	}
	h.dropSubscriptionLocked(c)
}

// dropSubscriptionLocked clears the client's subscription, deleting the
// meeting's subscriber set when it empties. The meeting record itself
// is never deleted. Caller holds h.mu.
func (h *Hub) dropSubscriptionLocked(c *Client) {
	if c.meetingID == "" {
		return
	}
	if subs, ok := h.subscriptions[c.meetingID]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.subscriptions, c.meetingID)
		}
	}
	c.meetingID = ""
}

// sendSnapshot sends the current record to this one connection.
func (h *Hub) sendSnapshot(c *Client, record models.MeetingRecord) {
	if h.enrich != nil {
		h.enrich(&record)
	}

	payload, err := marshalMeetingEnvelope(typeMeetingData, record)
	if err != nil {
		log.Printf("ws: marshal snapshot for %s: %v", record.ID, err)
		return
	}
	if !c.trySend(payload) {
		log.Printf("ws: dropped snapshot to %s: send buffer full", c.addr)
	}
}

// sendError sends an error envelope to the single connection whose
// request could not be satisfied. Other connections are unaffected.
func (h *Hub) sendError(c *Client, message string) {
	if !c.trySend(marshalErrorEnvelope(message)) {
		log.Printf("ws: dropped error envelope to %s: send buffer full", c.addr)
	}
}

// SubscriberCount reports the size of a meeting's subscription set.
func (h *Hub) SubscriberCount(meetingID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[meetingID])
}

// ServeWS upgrades the request and registers the new connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		addr: r.RemoteAddr,
	}

	// The register channel is unbuffered, so the client is in the hub's
	// set before either pump can trigger an unregister.
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// closeAllConnections force-closes every registered connection; the
// read pumps then drive normal unregister cleanup.
func (h *Hub) closeAllConnections() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.conn.Close()
	}
	if len(clients) > 0 {
		log.Printf("ws: closed %d connections on shutdown", len(clients))
	}
}

// Shutdown stops the run loop and closes all connections, waiting up to
// timeout for the loop to exit.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()

	select {
	case <-h.done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}
