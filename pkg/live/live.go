// Package live broadcasts router state to websocket clients.
//
// Remote rendering adapters and devtools connect to a Server and receive
// a JSON message for every store commit of the routers attached to it.
package live

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/routecore/pkg/router"
)

// MessageType represents the type of feed message.
type MessageType string

const (
	// MessageState carries a committed router state.
	MessageState MessageType = "state"
	// MessageClosed is sent before the server closes a connection.
	MessageClosed MessageType = "closed"
)

// Message is sent to clients via WebSocket.
type Message struct {
	Type      MessageType             `json:"type"`
	Status    router.RouterStatus     `json:"status,omitempty"`
	IsLoading bool                    `json:"isLoading,omitempty"`
	Pending   []string                `json:"pending,omitempty"`
	State     *router.DehydratedState `json:"state,omitempty"`
}

const writeWait = 5 * time.Second

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Server manages feed connections.
type Server struct {
	clients  map[*client]bool
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	logger   *slog.Logger

	// last is the most recent message, replayed to new clients.
	last []byte
}

// NewServer creates a feed server. A nil logger uses slog.Default().
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		clients: make(map[*client]bool),
		logger:  logger.With("component", "live"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Attach broadcasts every commit of r's store and returns the detach.
// The current state is published immediately.
func (s *Server) Attach(r *router.Router) (detach func()) {
	s.Publish(r.State())
	return r.Store().Subscribe(s.Publish)
}

// Publish broadcasts state to all clients.
func (s *Server) Publish(state router.RouterState) {
	ds := router.DehydrateState(state)
	msg := Message{
		Type:      MessageState,
		Status:    state.Status,
		IsLoading: state.IsLoading,
		State:     &ds,
	}
	for _, m := range state.PendingMatches {
		msg.Pending = append(msg.Pending, m.ID)
	}
	s.broadcast(msg)
}

// HandleWebSocket handles WebSocket upgrade and connection.
func (s *Server) HandleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn}

	s.mu.Lock()
	s.clients[c] = true
	last := s.last
	s.mu.Unlock()
	s.logger.Debug("client connected", "remote", req.RemoteAddr)

	if last != nil {
		if err := c.write(last); err != nil {
			s.remove(c)
			return
		}
	}

	// Keep connection alive until client disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.remove(c)
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

// broadcast sends a message to all connected clients.
func (s *Server) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Warn("encoding state failed", "error", err)
		return
	}

	s.mu.Lock()
	if msg.Type == MessageState {
		s.last = data
	}
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			s.logger.Debug("dropping client", "error", err)
			s.remove(c)
		}
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close tells clients the feed ended and closes their connections.
func (s *Server) Close() {
	s.broadcast(Message{Type: MessageClosed})

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.conn.Close()
		delete(s.clients, c)
	}
}
