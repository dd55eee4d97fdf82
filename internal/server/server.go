package server

import (
	"context"
	"log"

	"github.com/fixfusion/chat-server/internal/database"
	"github.com/fixfusion/chat-server/internal/stats"
)

const (
	statActiveConnections = "ActiveConnections"
	statActiveRooms       = "ActiveRooms"
	statMessagesSent      = "MessagesSent"
	statMessagesFailed    = "MessagesFailed"
)

type broadcastReq struct {
	roomId string
	msg    *ServerMessage
}

// ChatServer owns the room registry and serializes all membership changes
// through its run loop. It is constructed once per process and handed to the
// HTTP layer by reference; tests create independent instances.
type ChatServer struct {
	log            *log.Logger
	db             database.ChatRepository
	stats          stats.StatsProvider
	rooms          map[string]*Room
	clients        map[*Client]struct{}
	registerChan   chan *Client
	deRegisterChan chan *Client
	joinChan       chan *ClientMessage
	leaveChan      chan *ClientMessage
	broadcastChan  chan *broadcastReq
	stop           chan struct{}
	done           chan struct{}
}

func NewChatServer(logger *log.Logger, db database.ChatRepository, su stats.StatsProvider) (*ChatServer, error) {
	cs := &ChatServer{
		log:            logger,
		db:             db,
		stats:          su,
		rooms:          make(map[string]*Room),
		clients:        make(map[*Client]struct{}),
		registerChan:   make(chan *Client),
		deRegisterChan: make(chan *Client, 256),
		joinChan:       make(chan *ClientMessage, 256),
		leaveChan:      make(chan *ClientMessage, 256),
		broadcastChan:  make(chan *broadcastReq, 256),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}

	su.RegisterMetric(statActiveConnections)
	su.RegisterMetric(statActiveRooms)
	su.RegisterMetric(statMessagesSent)
	su.RegisterMetric(statMessagesFailed)

	return cs, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case c := <-cs.registerChan:
			cs.clients[c] = struct{}{}
			cs.stats.Incr(statActiveConnections)
		case c := <-cs.deRegisterChan:
			if _, ok := cs.clients[c]; !ok {
				continue
			}
			delete(cs.clients, c)
			cs.stats.Decr(statActiveConnections)

			// implicit leave for whatever room the connection held
			if r := c.getRoom(); r != nil {
				cs.removeFromRoom(c, r)
			}
		case msg := <-cs.joinChan:
			cs.handleJoin(msg)
		case msg := <-cs.leaveChan:
			cs.handleLeave(msg)
		case req := <-cs.broadcastChan:
			if r, ok := cs.rooms[req.roomId]; ok {
				r.broadcast(req.msg)
			}
		case <-cs.stop:
			cs.log.Println("shutting down chat server")
			for c := range cs.clients {
				c.close()
			}
			cs.rooms = make(map[string]*Room)
			close(cs.done)
			return
		}
	}
}

// RegisterClient adds a freshly upgraded connection to the server. The
// caller starts the client's read and write pumps afterwards.
func (cs *ChatServer) RegisterClient(c *Client) {
	select {
	case cs.registerChan <- c:
	case <-cs.done:
	}
}

// Broadcast queues a room-scoped event for fan-out. Non-blocking: if the
// dispatch queue is full the event is dropped and clients recover through
// the history API.
func (cs *ChatServer) Broadcast(roomId string, msg *ServerMessage) {
	select {
	case cs.broadcastChan <- &broadcastReq{roomId: roomId, msg: msg}:
	default:
		cs.log.Printf("broadcast queue full, dropping event for room %q", roomId)
	}
}

// handleJoin places the client in the requested room, enforcing at most one
// active room per connection: joining while joined leaves the prior room
// first.
func (cs *ChatServer) handleJoin(msg *ClientMessage) {
	c := msg.client
	roomId := msg.Join.RoomId

	if cur := c.getRoom(); cur != nil {
		if cur.id == roomId {
			c.queueMessage(RoomJoinedMsg(roomId))
			return
		}
		cs.removeFromRoom(c, cur)
	}

	r, ok := cs.rooms[roomId]
	if !ok {
		cs.log.Printf("loading room %q", roomId)
		r = newRoom(roomId, cs.log)
		cs.rooms[roomId] = r
		cs.stats.Incr(statActiveRooms)
	}

	r.addClient(c)
	c.setRoom(r)

	// confirmation goes to the joiner alone
	c.queueMessage(RoomJoinedMsg(roomId))
}

func (cs *ChatServer) handleLeave(msg *ClientMessage) {
	c := msg.client
	r, ok := cs.rooms[msg.Leave.RoomId]
	if !ok || !r.hasClient(c) {
		return
	}

	cs.removeFromRoom(c, r)
}

func (cs *ChatServer) removeFromRoom(c *Client, r *Room) {
	r.removeClient(c)
	c.setRoom(nil)

	if r.empty() {
		cs.log.Printf("unloading room %q", r.id)
		delete(cs.rooms, r.id)
		cs.stats.Decr(statActiveRooms)
	}
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	close(cs.stop)

	select {
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
