package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024 * 1024 // 1MB

	sendBuffer = 256
)

// Client represents a connected WebSocket client
type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	AccountID string

	// OnMessage receives every inbound message other than pings.
	OnMessage func([]byte)

	mu     sync.Mutex
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, accountID string) *Client {
	return &Client{
		Hub:       hub,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		AccountID: accountID,
	}
}

// WebSocketMessage is the standard message format for WebSocket communication
type WebSocketMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
	User string `json:"user,omitempty"`
}

// SendMessage queues a message for the peer. It reports false when the
// client is closed or its buffer is full.
func (c *Client) SendMessage(msg WebSocketMessage) bool {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshalling WebSocket message: %v", err)
		return false
	}
	return c.send(payload)
}

func (c *Client) send(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// ReadPump pumps messages from the WebSocket connection to OnMessage
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var wsMessage WebSocketMessage
		if err := json.Unmarshal(message, &wsMessage); err != nil {
			log.Printf("Error unmarshalling WebSocket message: %v", err)
			continue
		}

		// Reply to pings directly without involving the session
		if wsMessage.Type == "ping" {
			c.SendMessage(WebSocketMessage{
				Type: "pong",
				Data: map[string]string{"timestamp": time.Now().UTC().Format(time.RFC3339)},
			})
			continue
		}

		if c.OnMessage != nil {
			c.OnMessage(message)
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
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
				// The hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON message per frame so peers can decode each frame directly.
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

type accountMessage struct {
	accountID string
	except    *Client
	all       bool
	payload   []byte
}

// Hub tracks the live connections of every account and fans out
// notifications to them.
type Hub struct {
	clients    map[string]map[*Client]bool
	broadcast  chan accountMessage
	register   chan *Client
	unregister chan *Client
	count      chan countRequest
}

type countRequest struct {
	accountID string
	reply     chan int
}

// NewHub creates a new hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan accountMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan countRequest),
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// NotifyAccount sends message to every connection of accountID except the
// given client, which may be nil.
func (h *Hub) NotifyAccount(accountID string, message WebSocketMessage, except *Client) {
	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshalling WebSocket message: %v", err)
		return
	}
	h.broadcast <- accountMessage{accountID: accountID, except: except, payload: payload}
}

// NotifyAll sends message to every live connection of every account.
func (h *Hub) NotifyAll(message WebSocketMessage) {
	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshalling WebSocket message: %v", err)
		return
	}
	h.broadcast <- accountMessage{all: true, payload: payload}
}

// ConnectionCount returns the number of live connections for accountID.
func (h *Hub) ConnectionCount(accountID string) int {
	reply := make(chan int, 1)
	h.count <- countRequest{accountID: accountID, reply: reply}
	return <-reply
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			conns := h.clients[client.AccountID]
			if conns == nil {
				conns = make(map[*Client]bool)
				h.clients[client.AccountID] = conns
			}
			conns[client] = true
			log.Printf("Client connected: %s", client.AccountID)
		case client := <-h.unregister:
			if conns, ok := h.clients[client.AccountID]; ok && conns[client] {
				h.remove(client)
				log.Printf("Client disconnected: %s", client.AccountID)
			}
		case req := <-h.count:
			req.reply <- len(h.clients[req.accountID])
		case msg := <-h.broadcast:
			if msg.all {
				for _, conns := range h.clients {
					h.deliver(conns, msg)
				}
			} else {
				h.deliver(h.clients[msg.accountID], msg)
			}
		}
	}
}

func (h *Hub) deliver(conns map[*Client]bool, msg accountMessage) {
	for client := range conns {
		if client == msg.except {
			continue
		}
		if !client.send(msg.payload) {
			// Client's send buffer is full, assume disconnected
			log.Printf("Client send buffer full, removing client: %s", client.AccountID)
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	conns := h.clients[client.AccountID]
	delete(conns, client)
	if len(conns) == 0 {
		delete(h.clients, client.AccountID)
	}
	client.close()
}
