// Package realtime pushes workspace events to dashboard websocket connections.
package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"leadgenBack/internal/models"
)

const (
	writeWait  = 20 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

const (
	EventLeadCreated        = "lead.created"
	EventBulkUploadProgress = "bulk_upload.progress"
	EventCreditsUpdated     = "credits.updated"
)

type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

// Authenticator resolves the caller of an upgrade request.
type Authenticator func(r *http.Request) (models.Principal, error)

// Event is the envelope written to clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	At   time.Time   `json:"at"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Hub keeps every open connection grouped by workspace. A user may hold several tabs,
// so a workspace maps to a set of connections.
type Hub struct {
	auth   Authenticator
	logger Logger

	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]map[*client]struct{}
}

func NewHub(auth Authenticator, logger Logger) *Hub {
	return &Hub{
		auth:   auth,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[string]map[*client]struct{}),
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	p, err := h.auth(r)
	if err != nil || p.WorkspaceID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.errorf("realtime: ws upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn}

	h.mu.Lock()
	set, ok := h.conns[p.WorkspaceID]
	if !ok {
		set = make(map[*client]struct{})
		h.conns[p.WorkspaceID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	if h.logger != nil {
		h.logger.Infof("realtime: user %s connected to workspace %s", p.UserID, p.WorkspaceID)
	}

	go h.pingLoop(p.WorkspaceID, c)
	go h.readLoop(p.WorkspaceID, c)
}

// Connections reports how many sockets are open for a workspace.
func (h *Hub) Connections(workspaceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[workspaceID])
}

// Publish sends an event to every connection of the workspace. Slow or broken
// connections are dropped.
func (h *Hub) Publish(workspaceID, eventType string, data interface{}) {
	payload, err := json.Marshal(Event{Type: eventType, Data: data, At: time.Now().UTC()})
	if err != nil {
		h.errorf("realtime: marshal %s failed: %v", eventType, err)
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.conns[workspaceID]))
	for c := range h.conns[workspaceID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.write(workspaceID, c, func(conn *websocket.Conn) error {
			return conn.WriteMessage(websocket.TextMessage, payload)
		})
	}
}

func (h *Hub) pingLoop(workspaceID string, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		if !h.alive(workspaceID, c) {
			return
		}
		h.write(workspaceID, c, func(conn *websocket.Conn) error {
			return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		})
	}
}

func (h *Hub) readLoop(workspaceID string, c *client) {
	defer h.remove(workspaceID, c)

	conn := c.conn
	conn.SetReadLimit(4 << 10)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		if mt == websocket.TextMessage && strings.EqualFold(strings.TrimSpace(string(message)), "ping") {
			h.write(workspaceID, c, func(conn *websocket.Conn) error {
				return conn.WriteMessage(websocket.TextMessage, []byte("pong"))
			})
		}
	}
}

func (h *Hub) alive(workspaceID string, c *client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[workspaceID][c]
	return ok
}

func (h *Hub) write(workspaceID string, c *client, fn func(*websocket.Conn) error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := fn(c.conn); err != nil {
		h.errorf("realtime: write to workspace %s failed: %v", workspaceID, err)
		h.remove(workspaceID, c)
	}
}

func (h *Hub) remove(workspaceID string, c *client) {
	_ = c.conn.Close()
	h.mu.Lock()
	if set, ok := h.conns[workspaceID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, workspaceID)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) errorf(format string, args ...interface{}) {
	if h.logger != nil {
		h.logger.Errorf(format, args...)
	}
}
