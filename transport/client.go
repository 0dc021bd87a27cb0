package transport

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/EatingIting/DRAW-IT/logger"
)

const (
	writeWait      = 20 * time.Second
	pongWait       = time.Minute
	pingPeriod     = 45 * time.Second
	maxMessageSize = 512 * 1024 // stroke batches and image-sized chat stay well under this
)

type websocketConnection struct {
	socket *websocket.Conn
}

func newWebsocketConnection(conn *websocket.Conn) websocketConnection {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	return websocketConnection{socket: conn}
}

func (wc *websocketConnection) Write(data []byte) error {
	wc.socket.SetWriteDeadline(time.Now().Add(writeWait))
	return wc.socket.WriteMessage(websocket.TextMessage, data)
}

func (wc *websocketConnection) Ping() error {
	wc.socket.SetWriteDeadline(time.Now().Add(writeWait))
	return wc.socket.WriteMessage(websocket.PingMessage, nil)
}

func (wc *websocketConnection) Read() ([]byte, error) {
	_, p, err := wc.socket.ReadMessage()
	return p, err
}

func (wc *websocketConnection) Close() {
	wc.socket.SetWriteDeadline(time.Now().Add(writeWait))
	wc.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	wc.socket.Close()
}

// client is one live socket. Outbound frames queue in outbox; a full
// queue marks the client too slow and drops the frame rather than stall
// the whole room's broadcast.
type client struct {
	sessionId string
	userId    string
	roomId    string
	inLobby   bool

	socket  websocketConnection
	outbox  chan []byte
	limiter *rate.Limiter
	done    chan struct{}
}

func newClient(sessionId string, socket websocketConnection) *client {
	return &client{
		sessionId: sessionId,
		socket:    socket,
		outbox:    make(chan []byte, 256),
		limiter:   rate.NewLimiter(20, 60), // draw streams are chatty
		done:      make(chan struct{}),
	}
}

func (c *client) send(data []byte) {
	select {
	case c.outbox <- data:
	default:
		logger.Warningf("[Transport %s] outbox full, dropping frame", c.sessionId)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data, ok := <-c.outbox:
			if !ok {
				return
			}
			if err := c.socket.Write(data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.socket.Ping(); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump(hub *Hub) {
	defer hub.drop(c)

	for {
		data, err := c.socket.Read()
		if err != nil {
			return
		}
		if !c.limiter.Allow() {
			continue
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debugf("[Transport %s] unparseable frame: %v", c.sessionId, err)
			continue
		}
		hub.dispatch(c, msg)
	}
}
