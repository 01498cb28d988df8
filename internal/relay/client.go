package relay

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/unishare/unishare/internal/signaling"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 64
)

// client is one connected peer as seen by the relay.
type client struct {
	id          string
	username    string
	emoji       string
	connectedAt int64

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn, id string) *client {
	return &client{
		id:          id,
		hub:         hub,
		conn:        conn,
		connectedAt: time.Now().Unix(),
		send:        make(chan []byte, sendBufferSize),
	}
}

// user snapshots the roster entry. Callers must hold the hub mutex.
func (c *client) user() signaling.User {
	return signaling.User{
		ID:          c.id,
		Username:    c.username,
		Emoji:       c.emoji,
		ConnectedAt: c.connectedAt,
	}
}

// readPump consumes envelopes from the peer until the socket dies, then
// unregisters it.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	for {
		var env signaling.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			c.hub.log.Debugf("Peer %s read ended: %v", c.id, err)
			return
		}
		c.hub.handleEnvelope(c, env)
	}
}

// writePump is the single writer for the socket. It exits when the send
// channel is closed by the hub.
func (c *client) writePump() {
	defer c.conn.Close()

	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.hub.log.Debugf("Peer %s write failed: %v", c.id, err)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
