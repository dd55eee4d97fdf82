package server

import (
	"log"
)

// Room is an ephemeral fan-out group over the live connections currently
// subscribed to one conversation. It holds no durable state: rooms are
// created on first join, unloaded when the last member leaves, and rebuilt
// from scratch when clients rejoin after a restart.
//
// Membership is owned by the ChatServer run loop; all mutations happen on
// that goroutine.
type Room struct {
	id      string
	clients map[*Client]struct{}
	log     *log.Logger
}

func newRoom(id string, logger *log.Logger) *Room {
	return &Room{
		id:      id,
		clients: make(map[*Client]struct{}),
		log:     logger,
	}
}

func (r *Room) addClient(c *Client) {
	r.clients[c] = struct{}{}
}

func (r *Room) removeClient(c *Client) {
	delete(r.clients, c)
}

func (r *Room) hasClient(c *Client) bool {
	_, ok := r.clients[c]
	return ok
}

func (r *Room) empty() bool {
	return len(r.clients) == 0
}

// broadcast queues msg on every member connection except skipClient.
// Delivery is best-effort: a member whose send buffer is full misses the
// event and catches up through the history API.
func (r *Room) broadcast(msg *ServerMessage) {
	for client := range r.clients {
		if client == msg.skipClient {
			continue
		}

		if !client.queueMessage(msg) {
			r.log.Printf("dropping event for slow client %d in room %q", client.userId, r.id)
		}
	}
}
