package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"schoolhub/internal/middleware"
	"schoolhub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is checked by CORS on the REST side; sockets authenticate by token
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one connected socket. It receives events for every group its
// user belonged to when it connected, plus groups joined since.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uuid.UUID
	groups []uuid.UUID
}

type message struct {
	groupID uuid.UUID
	payload []byte
}

type roomRequest struct {
	groupID uuid.UUID
	userID  uuid.UUID
}

type countRequest struct {
	groupID uuid.UUID
	reply   chan int
}

// Hub routes chat events to per-group rooms. All room state is owned by the
// Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	rooms      map[uuid.UUID]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	publish    chan message
	join       chan roomRequest
	leave      chan roomRequest
	count      chan countRequest
	done       chan struct{}
	logger     *zap.Logger
}

// NewHub initializes a new WS Hub instance
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan message, 64),
		join:       make(chan roomRequest),
		leave:      make(chan roomRequest),
		count:      make(chan countRequest),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the dispatch loop; it returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			for _, gid := range client.groups {
				h.room(gid)[client] = true
			}
			h.logger.Debug("websocket client connected",
				zap.String("user_id", client.userID.String()), zap.Int("groups", len(client.groups)))
		case client := <-h.unregister:
			h.drop(client)
		case req := <-h.join:
			for client := range h.clients {
				if client.userID == req.userID {
					h.room(req.groupID)[client] = true
				}
			}
		case req := <-h.leave:
			if room, ok := h.rooms[req.groupID]; ok {
				for client := range room {
					if client.userID == req.userID {
						delete(room, client)
					}
				}
				if len(room) == 0 {
					delete(h.rooms, req.groupID)
				}
			}
		case req := <-h.count:
			req.reply <- len(h.rooms[req.groupID])
		case msg := <-h.publish:
			for client := range h.rooms[msg.groupID] {
				select {
				case client.send <- msg.payload:
				default:
					// slow consumer
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) room(groupID uuid.UUID) map[*Client]bool {
	r, ok := h.rooms[groupID]
	if !ok {
		r = make(map[*Client]bool)
		h.rooms[groupID] = r
	}
	return r
}

// drop removes client from every room and closes its send channel once
func (h *Hub) drop(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	for gid, room := range h.rooms {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, gid)
		}
	}
	close(client.send)
	h.logger.Debug("websocket client disconnected", zap.String("user_id", client.userID.String()))
}

// Publish queues payload for every socket in the group's room. It never
// blocks the caller past hub shutdown.
func (h *Hub) Publish(groupID uuid.UUID, payload []byte) {
	select {
	case h.publish <- message{groupID: groupID, payload: payload}:
	case <-h.done:
	}
}

// Join subscribes the user's open sockets to groupID
func (h *Hub) Join(groupID, userID uuid.UUID) {
	select {
	case h.join <- roomRequest{groupID: groupID, userID: userID}:
	case <-h.done:
	}
}

// Leave unsubscribes the user's open sockets from groupID
func (h *Hub) Leave(groupID, userID uuid.UUID) {
	select {
	case h.leave <- roomRequest{groupID: groupID, userID: userID}:
	case <-h.done:
	}
}

// Subscribers reports how many sockets are in the group's room
func (h *Hub) Subscribers(groupID uuid.UUID) int {
	reply := make(chan int, 1)
	select {
	case h.count <- countRequest{groupID: groupID, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}

// writePump handles writing messages from the Hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only watches for close and pong frames; clients post through REST
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
	}
}

// GroupLister returns the chat groups a user belongs to. Returning
// service.ErrForbidden refuses the socket.
type GroupLister func(ctx context.Context, userID, role string) ([]uuid.UUID, error)

// ServeWs authenticates the token query parameter, upgrades the connection
// and subscribes it to the user's groups
func ServeWs(hub *Hub, c *gin.Context, secret []byte, groups GroupLister) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	claims, err := middleware.ParseToken(tokenString, secret)
	if err != nil {
		hub.logger.Info("websocket connection rejected", zap.Error(err))
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	sub := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	role, _ := claims["role"].(string)
	groupIDs, err := groups(c.Request.Context(), sub, role)
	if errors.Is(err, service.ErrForbidden) {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	if err != nil {
		hub.logger.Error("failed to load chat groups for socket", zap.String("user_id", sub), zap.Error(err))
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{hub: hub, conn: conn, send: make(chan []byte, sendBuffer), userID: userID, groups: groupIDs}
	select {
	case hub.register <- client:
	case <-hub.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
