package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"recoilctl/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The listener is loopback-only; local pages may come from any origin.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub handles WebSocket connections and broadcasting
type Hub struct {
	server     *Server
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	shutdown   chan struct{}
	stopOnce   sync.Once
	done       chan struct{}
}

// wsClient represents a connected control panel
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	ip   string

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// enqueue drops data when the buffer is full or the client is closed.
func (c *wsClient) enqueue(data []byte) bool {
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

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func newHub(s *Server) *Hub {
	return &Hub{
		server:     s,
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// run owns the client set.
func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.server.log.Debug().Str("remote", client.ip).Int("clients", len(h.clients)).Msg("event client connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				h.server.log.Debug().Str("remote", client.ip).Int("clients", len(h.clients)).Msg("event client disconnected")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				if !client.enqueue(message) {
					// Slow reader.
					client.close()
					delete(h.clients, client)
				}
			}

		case <-h.shutdown:
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			return
		}
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() { close(h.shutdown) })
	<-h.done
}

// publish queues a message for every client. It never blocks; messages are
// dropped while the queue is full or after shutdown.
func (h *Hub) publish(msg protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case <-h.shutdown:
	case h.broadcast <- data:
	default:
	}
}

// BroadcastStatus sends a state event.
func (h *Hub) BroadcastStatus(st protocol.Status) {
	msg, err := protocol.NewMessage(protocol.TypeState, st)
	if err != nil {
		return
	}
	h.publish(msg)
}

// Write forwards one encoded log line as a log event. Lines that are not
// JSON are sent as a string.
func (h *Hub) Write(p []byte) (int, error) {
	line := bytes.TrimSpace(p)
	payload := json.RawMessage(line)
	if !json.Valid(line) {
		raw, err := json.Marshal(string(line))
		if err != nil {
			return len(p), nil
		}
		payload = raw
	}
	h.publish(protocol.Message{Type: protocol.TypeLog, Payload: payload})
	return len(p), nil
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.server.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		ip:   r.RemoteAddr,
	}

	// Current state first so panels render immediately.
	client.reply(protocol.TypeState, h.server.ctrl.Status())

	select {
	case h.register <- client:
	case <-h.shutdown:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the websocket connection to the controller.
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.server.log.Debug().Err(err).Str("remote", c.ip).Msg("websocket read")
			}
			break
		}
		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *wsClient) writePump() {
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
				// The hub closed the channel.
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

// reply queues a message for this client only.
func (c *wsClient) reply(t protocol.MessageType, payload any) {
	msg, err := protocol.NewMessage(t, payload)
	if err != nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.enqueue(data)
}

func (c *wsClient) fail(err error) {
	c.reply(protocol.TypeError, protocol.ErrorPayload{Error: err.Error()})
}

func (c *wsClient) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.fail(err)
		return
	}
	ctrl := c.hub.server.ctrl

	switch msg.Type {
	case protocol.TypeAction:
		var payload protocol.ActionPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.fail(err)
			return
		}
		if err := ctrl.SetAction(payload.Action, payload.Enabled); err != nil {
			c.fail(err)
		}

	case protocol.TypeSelectProfile:
		var payload protocol.SelectProfilePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.fail(err)
			return
		}
		if err := c.hub.server.selectProfile(payload); err != nil {
			c.fail(err)
		}

	case protocol.TypePing:
		c.reply(protocol.TypePing, nil)

	default:
		c.reply(protocol.TypeError, protocol.ErrorPayload{Error: "unsupported message type " + string(msg.Type)})
	}
}
