package broadcast

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	clientSendBuffer = 256
)

// Hub tracks websocket clients by the item they watch. ItemID 0 means
// the client wants the firehose (every notification).
type Hub struct {
	mu          sync.RWMutex
	subscribers map[int64]map[*Client]struct{}
	log         zerolog.Logger
}

// Client is one websocket connection. Writes go through the buffered
// Send channel; a slow client whose buffer fills is disconnected so it
// cannot stall the hub.
type Client struct {
	ID     string
	ItemID int64
	Conn   *websocket.Conn
	Send   chan []byte

	closeOnce sync.Once
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[int64]map[*Client]struct{}),
		log:         log,
	}
}

// Register adds a client and starts its pumps.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.subscribers[c.ItemID]
	if !ok {
		set = make(map[*Client]struct{})
		h.subscribers[c.ItemID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	h.log.Debug().Str("client", c.ID).Int64("item_id", c.ItemID).Msg("client subscribed")

	go c.writePump()
	go c.readPump(h)
}

// Unregister removes a client and closes its connection. Safe to call
// more than once for the same client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.subscribers[c.ItemID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subscribers, c.ItemID)
		}
	}
	h.mu.Unlock()

	c.closeOnce.Do(func() {
		close(c.Send)
		c.Conn.Close()
		h.log.Debug().Str("client", c.ID).Int64("item_id", c.ItemID).Msg("client unsubscribed")
	})
}

// BroadcastItem delivers a payload to clients watching one item.
func (h *Hub) BroadcastItem(itemID int64, payload []byte) {
	h.deliver(itemID, payload)
}

// BroadcastAll delivers a payload to firehose clients.
func (h *Hub) BroadcastAll(payload []byte) {
	h.deliver(0, payload)
}

func (h *Hub) deliver(itemID int64, payload []byte) {
	h.mu.RLock()
	set := h.subscribers[itemID]
	var slow []*Client
	for c := range set {
		select {
		case c.Send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.Unregister(c)
	}
}

// SubscriberCount returns the number of clients watching an item.
func (h *Hub) SubscriberCount(itemID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[itemID])
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump(h *Hub) {
	defer h.Unregister(c)

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug().Str("client", c.ID).Err(err).Msg("websocket read error")
			}
			return
		}
		// Inbound messages are ignored; the stream is one-way.
	}
}
