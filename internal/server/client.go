package server

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/fixfusion/chat-server/internal/database"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one live websocket connection for an authenticated participant.
// A connection holds at most one active room at a time.
type Client struct {
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	userId     int
	send       chan *ServerMessage
	room       *Room
	roomLock   sync.RWMutex
	stop       chan struct{}
	closeOnce  sync.Once
}

func NewClient(userId int, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		chatServer: cs,
		log:        l,
		userId:     userId,
		send:       make(chan *ServerMessage, 256),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage("malformed event"))
			continue
		}

		msg.client = c

		switch {
		case msg.Join != nil:
			c.joinRoom(&msg)
		case msg.Leave != nil:
			c.leaveRoom(&msg)
		case msg.Send != nil:
			c.handleSend(&msg)
		case msg.Typing != nil:
			c.handleTyping(&msg)
		}
	}
}

// handleSend runs the full send pipeline on the sender's read goroutine:
// validate, persist, broadcast, acknowledge. Persistence blocks only this
// connection; nothing is broadcast unless the write was durable.
func (c *Client) handleSend(msg *ClientMessage) {
	send := msg.Send
	if send.SenderId == 0 || send.ReceiverId == 0 || send.Message == "" {
		c.queueMessage(ErrMissingFields())
		return
	}

	if send.SenderId != c.userId {
		c.queueMessage(ErrInvalidMessage("sender does not match authenticated user"))
		return
	}

	stored, err := c.chatServer.db.CreateMessage(database.CreateMessageParams{
		SenderId:   send.SenderId,
		ReceiverId: send.ReceiverId,
		Content:    send.Message,
		Type:       send.MessageType,
		Location:   send.LocationData,
	})
	if err != nil {
		c.chatServer.stats.Incr(statMessagesFailed)

		var ve *database.ValidationError
		if errors.As(err, &ve) {
			c.queueMessage(ErrInvalidMessage(ve.Error()))
			return
		}

		c.log.Println("error saving message:", err)
		c.queueMessage(ErrSaveFailed())
		return
	}

	// broadcast includes the sender's own connection: clients reconcile
	// their optimistic copy against this server-confirmed record
	roomId := PairRoomId(send.SenderId, send.ReceiverId)
	c.chatServer.Broadcast(roomId, ReceiveMsg(stored.Normalized()))

	c.queueMessage(MessageSentMsg(stored.Id, stored.Type))
	c.chatServer.stats.Incr(statMessagesSent)
}

// handleTyping relays an ephemeral typing indicator to the room, excluding
// the sender. Not persisted, not acknowledged; a lost event self-heals on
// the next keystroke.
func (c *Client) handleTyping(msg *ClientMessage) {
	t := msg.Typing
	if t.SenderId != c.userId || t.ReceiverId == 0 {
		return
	}

	roomId := PairRoomId(t.SenderId, t.ReceiverId)
	c.chatServer.Broadcast(roomId, UserTypingMsg(t.SenderId, t.IsTyping, c))
}

func (c *Client) joinRoom(msg *ClientMessage) {
	select {
	case c.chatServer.joinChan <- msg:
	default:
		c.log.Println("join queue full")
	}
}

func (c *Client) leaveRoom(msg *ClientMessage) {
	select {
	case c.chatServer.leaveChan <- msg:
	default:
		c.log.Println("leave queue full")
	}
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		return false
	}

	return true
}

func (c *Client) setRoom(r *Room) {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()
	c.room = r
}

func (c *Client) getRoom() *Room {
	c.roomLock.RLock()
	defer c.roomLock.RUnlock()
	return c.room
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.stop)
	})
}

// cleanup deregisters the connection; the run loop performs the implicit
// leave for whatever room it held.
func (c *Client) cleanup() {
	select {
	case c.chatServer.deRegisterChan <- c:
	case <-c.chatServer.done:
	}

	c.close()
}
