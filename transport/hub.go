// Package transport is the websocket layer: one socket per player, a
// hub that fans session events out to room, user and lobby audiences,
// and the inbound JSON action dispatch into the session coordinator.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/EatingIting/DRAW-IT/logger"
	"github.com/EatingIting/DRAW-IT/session"
)

// inboundMessage is the envelope every client frame uses. Fields beyond
// Action are read per action; unknown actions are dropped.
type inboundMessage struct {
	Action string `json:"action"`

	RoomId       string `json:"roomId,omitempty"`
	UserId       string `json:"userId,omitempty"`
	Nickname     string `json:"nickname,omitempty"`
	Message      string `json:"message,omitempty"`
	Word         string `json:"word,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
	ImageIndex   *int   `json:"imageIndex,omitempty"`

	Event *session.DrawEvent `json:"event,omitempty"`
}

type Hub struct {
	coordinator *session.Coordinator

	mu      sync.Mutex
	byRoom  map[string]map[*client]struct{}
	byUser  map[string]map[*client]struct{}
	inLobby map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		byRoom:  make(map[string]map[*client]struct{}),
		byUser:  make(map[string]map[*client]struct{}),
		inLobby: make(map[*client]struct{}),
	}
}

// Bind attaches the coordinator after construction. The hub is the
// coordinator's broadcaster, so the two cannot be built in one shot.
func (h *Hub) Bind(coordinator *session.Coordinator) {
	h.coordinator = coordinator
}

// Serve upgrades the request and runs the client's pumps. Gin handler
// for GET /ws.
func (h *Hub) Serve(ctx *gin.Context) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		logger.Warningf("[Transport] websocket upgrade failed: %v", err)
		return
	}

	c := newClient(uuid.NewString(), newWebsocketConnection(conn))
	go c.writePump()
	c.readPump(h)
}

// --- session.Broadcaster ---

func (h *Hub) ToRoom(roomId string, event session.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Criticalf("[Transport] cannot marshal %s: %v", event.EventType(), err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.byRoom[roomId] {
		c.send(data)
	}
}

func (h *Hub) ToUser(userId string, event session.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Criticalf("[Transport] cannot marshal %s: %v", event.EventType(), err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.byUser[userId] {
		c.send(data)
	}
}

func (h *Hub) ToLobby(event session.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Criticalf("[Transport] cannot marshal %s: %v", event.EventType(), err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.inLobby {
		c.send(data)
	}
}

// --- registration ---

func (h *Hub) bindRoom(c *client, roomId, userId string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unbindLocked(c)
	c.roomId = roomId
	c.userId = userId

	if h.byRoom[roomId] == nil {
		h.byRoom[roomId] = make(map[*client]struct{})
	}
	h.byRoom[roomId][c] = struct{}{}

	if h.byUser[userId] == nil {
		h.byUser[userId] = make(map[*client]struct{})
	}
	h.byUser[userId][c] = struct{}{}
}

func (h *Hub) bindLobby(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unbindLocked(c)
	c.inLobby = true
	h.inLobby[c] = struct{}{}
}

func (h *Hub) unbindLocked(c *client) {
	if c.roomId != "" {
		if members := h.byRoom[c.roomId]; members != nil {
			delete(members, c)
			if len(members) == 0 {
				delete(h.byRoom, c.roomId)
			}
		}
		c.roomId = ""
	}
	if c.userId != "" {
		if conns := h.byUser[c.userId]; conns != nil {
			delete(conns, c)
			if len(conns) == 0 {
				delete(h.byUser, c.userId)
			}
		}
		c.userId = ""
	}
	if c.inLobby {
		delete(h.inLobby, c)
		c.inLobby = false
	}
}

// drop tears the client down after its read loop ended. The session
// entry stays during the grace window; only the socket goes away.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	h.unbindLocked(c)
	h.mu.Unlock()

	close(c.done)
	c.socket.Close()
	h.coordinator.Disconnected(c.sessionId)
}

// --- inbound dispatch ---

func (h *Hub) dispatch(c *client, msg inboundMessage) {
	ctx := context.Background()

	switch msg.Action {
	case "lobby":
		h.bindLobby(c)
		h.coordinator.BroadcastRoomList(ctx)

	case "join":
		if msg.RoomId == "" || msg.UserId == "" {
			return
		}
		h.bindRoom(c, msg.RoomId, msg.UserId)
		h.coordinator.Join(ctx, msg.RoomId, c.sessionId, msg.UserId, msg.Nickname)

	case "leave", "wordchain_leave":
		if c.roomId == "" {
			return
		}
		roomId, userId := c.roomId, c.userId
		h.mu.Lock()
		h.unbindLocked(c)
		h.mu.Unlock()
		h.coordinator.Leave(ctx, roomId, userId)

	case "start_game":
		if c.roomId != "" {
			h.coordinator.StartGame(ctx, c.roomId)
		}

	case "draw":
		if c.roomId != "" && msg.Event != nil {
			evt := *msg.Event
			evt.UserId = c.userId
			h.coordinator.HandleDraw(c.roomId, evt)
		}

	case "clear":
		if c.roomId != "" {
			h.coordinator.HandleClear(c.roomId, c.userId)
		}

	case "chat":
		if c.roomId != "" {
			h.coordinator.HandleChat(ctx, c.roomId, c.userId, msg.Message)
		}

	case "vote":
		if c.roomId != "" && msg.ImageIndex != nil {
			h.coordinator.Vote(c.roomId, c.userId, *msg.ImageIndex)
		}

	case "update_profile":
		if c.roomId != "" {
			h.coordinator.UpdateProfile(c.roomId, c.userId, msg.Nickname, msg.ProfileImage)
		}

	case "wordchain_submit":
		if c.roomId != "" {
			h.coordinator.SubmitWord(ctx, c.roomId, c.userId, msg.Nickname, msg.Word)
		}

	case "wordchain_sync":
		if c.roomId != "" {
			h.coordinator.SyncWordChain(ctx, c.roomId)
		}

	case "wordchain_chat":
		if c.roomId != "" {
			h.coordinator.WordChainChat(c.roomId, c.userId, msg.Message)
		}

	default:
		logger.Debugf("[Transport %s] unknown action %q", c.sessionId, msg.Action)
	}
}
