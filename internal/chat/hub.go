// Package chat is the admin support channel: each connected customer gets a
// private room, admins see join/leave notices and can reply into any room.
package chat

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	eventClientMessage = "client-message"
	eventAdminMessage  = "admin-message"
	eventAdminNotify   = "admin-notify"
	eventDisconnect    = "admin-notify-disconnect"
)

// Message is the single frame format both sides exchange.
type Message struct {
	Event string `json:"event"`
	Room  string `json:"room,omitempty"`
	Text  string `json:"text,omitempty"`
}

type Hub struct {
	mu       sync.Mutex
	rooms    map[string]*websocket.Conn // roomID -> customer conn
	admins   map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]*websocket.Conn),
		admins: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The widget is embedded on the storefront origin; auth for the
			// admin side happens before the upgrade.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleClient upgrades a customer connection, assigns it a room and relays
// its messages to every connected admin.
func (h *Hub) HandleClient() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logrus.WithField("module", "chat").Warn("client upgrade failed: ", err)
			return
		}

		room := newRoomID()
		h.mu.Lock()
		h.rooms[room] = conn
		h.mu.Unlock()

		_ = conn.WriteJSON(Message{Event: "joined", Room: room})
		h.broadcastToAdmins(Message{Event: eventAdminNotify, Room: room, Text: "customer connected"})

		defer func() {
			h.mu.Lock()
			delete(h.rooms, room)
			h.mu.Unlock()
			conn.Close()
			h.broadcastToAdmins(Message{Event: eventDisconnect, Room: room})
		}()

		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			h.broadcastToAdmins(Message{Event: eventClientMessage, Room: room, Text: msg.Text})
		}
	}
}

// HandleAdmin upgrades an admin connection; admin frames carry the target
// room and are relayed to that room's customer.
func (h *Hub) HandleAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logrus.WithField("module", "chat").Warn("admin upgrade failed: ", err)
			return
		}

		h.mu.Lock()
		h.admins[conn] = struct{}{}
		h.mu.Unlock()

		defer func() {
			h.mu.Lock()
			delete(h.admins, conn)
			h.mu.Unlock()
			conn.Close()
		}()

		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Room == "" || msg.Text == "" {
				continue
			}
			h.sendToRoom(msg.Room, Message{Event: eventAdminMessage, Room: msg.Room, Text: msg.Text})
		}
	}
}

func (h *Hub) broadcastToAdmins(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.admins {
		if err := conn.WriteJSON(msg); err != nil {
			conn.Close()
			delete(h.admins, conn)
		}
	}
}

func (h *Hub) sendToRoom(room string, msg Message) {
	h.mu.Lock()
	conn, ok := h.rooms[room]
	h.mu.Unlock()
	if !ok {
		return
	}
	if err := conn.WriteJSON(msg); err != nil {
		h.mu.Lock()
		delete(h.rooms, room)
		h.mu.Unlock()
		conn.Close()
	}
}

func newRoomID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "room-fallback"
	}
	return hex.EncodeToString(buf)
}
