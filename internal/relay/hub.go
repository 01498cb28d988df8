// Package relay implements the signaling relay: a WebSocket hub keyed by
// peer identity that forwards negotiation envelopes between two peers and
// rebroadcasts the full online roster on every membership change.
package relay

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/unishare/unishare/internal/signaling"
)

// Hub owns the registry of connected peers. All mutation happens under one
// mutex; per-client writes go through buffered send channels so a slow peer
// cannot block the hub.
type Hub struct {
	log     *logrus.Logger
	mu      sync.Mutex
	clients map[string]*client
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[string]*client),
	}
}

// register adds a peer and broadcasts the updated roster. A reconnect under
// an identity that is still registered replaces the old socket.
func (h *Hub) register(c *client) {
	h.mu.Lock()
	if old, ok := h.clients[c.id]; ok {
		close(old.send)
	}
	h.clients[c.id] = c
	h.mu.Unlock()

	h.log.Infof("Peer %s connected", c.id)
	h.broadcastRoster()
}

// unregister drops a peer (if this socket is still the registered one) and
// broadcasts the updated roster.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	current, ok := h.clients[c.id]
	if ok && current == c {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()

	if ok && current == c {
		h.log.Infof("Peer %s disconnected", c.id)
		h.broadcastRoster()
	}
}

func (h *Hub) handleEnvelope(c *client, env signaling.Envelope) {
	switch env.Type {
	case signaling.MsgTypeUpdateInfo:
		h.mu.Lock()
		c.username = env.Username
		c.emoji = env.Emoji
		h.mu.Unlock()
		h.broadcastRoster()

	case signaling.MsgTypeOffer, signaling.MsgTypeAnswer, signaling.MsgTypeICECandidate:
		h.forward(c, env)

	default:
		h.log.Warnf("Peer %s sent unknown envelope type %q", c.id, env.Type)
	}
}

// forward relays a negotiation envelope to its target, stamping the sender
// identity. Envelopes for unknown targets are dropped and logged.
func (h *Hub) forward(from *client, env signaling.Envelope) {
	target := env.Target
	env.Sender = from.id
	env.Target = ""

	data, err := json.Marshal(env)
	if err != nil {
		h.log.Errorf("Failed to marshal %s envelope: %v", env.Type, err)
		return
	}

	h.mu.Lock()
	to, ok := h.clients[target]
	h.mu.Unlock()
	if !ok {
		h.log.Warnf("Dropping %s from %s: target %s not connected", env.Type, from.id, target)
		return
	}

	h.deliver(to, data)
}

// broadcastRoster sends each connected peer the full roster minus itself.
func (h *Hub) broadcastRoster() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, recipient := range clients {
		users := make([]signaling.User, 0, len(clients)-1)
		h.mu.Lock()
		for _, c := range clients {
			if c.id == recipient.id {
				continue
			}
			users = append(users, c.user())
		}
		h.mu.Unlock()

		data, err := json.Marshal(signaling.Envelope{
			Type:  signaling.MsgTypeOnlineUsers,
			Users: users,
		})
		if err != nil {
			h.log.Errorf("Failed to marshal roster: %v", err)
			return
		}
		h.deliver(recipient, data)
	}
}

func (h *Hub) deliver(to *client, data []byte) {
	defer func() {
		// Send channel may have been closed by a concurrent unregister.
		_ = recover()
	}()
	select {
	case to.send <- data:
	default:
		h.log.Warnf("Peer %s send buffer full, dropping message", to.id)
	}
}

// Users returns the complete roster, for the HTTP snapshot endpoint.
func (h *Hub) Users() []signaling.User {
	h.mu.Lock()
	defer h.mu.Unlock()
	users := make([]signaling.User, 0, len(h.clients))
	for _, c := range h.clients {
		users = append(users, c.user())
	}
	return users
}
