package chatclient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fixfusion/chat-server/internal/server"
	"github.com/fixfusion/chat-server/internal/types"
	"github.com/gorilla/websocket"
	"github.com/teris-io/shortid"
)

const (
	initialReconnectDelay = time.Second
	maxReconnectDelay     = 5 * time.Second
	maxConnectAttempts    = 5
	// reconcileWindow is the timestamp tolerance used to match an optimistic
	// local entry against its server-confirmed broadcast copy when the id is
	// not yet known.
	reconcileWindow = time.Second
)

var ErrSessionClosed = errors.New("session closed")

type Config struct {
	// ServerURL is the chat server base URL, e.g. http://localhost:8000.
	ServerURL string
	// Token is the bearer token issued by the marketplace auth service.
	Token  string
	UserId int
	// PeerId is the counterpart in the conversation (the technician for a
	// customer session and vice versa).
	PeerId int

	OnMessage func(types.Message)
	OnTyping  func(senderId int, isTyping bool)
	OnError   func(error)

	Logger     *log.Logger
	HTTPClient *http.Client
}

// entry is one message in the local merged view. token is non-empty while
// the entry is an optimistic local copy awaiting server confirmation.
type entry struct {
	msg   types.Message
	token string
}

// Session drives one conversation from the client side: connect with bounded
// backoff, join the pair's room, sync history before trusting live events,
// and reconcile optimistic sends against server-confirmed broadcasts.
type Session struct {
	cfg   Config
	log   *log.Logger
	httpc *http.Client

	connLock  sync.Mutex
	conn      *websocket.Conn
	writeLock sync.Mutex

	mu      sync.Mutex
	entries []entry

	closed    chan struct{}
	closeOnce sync.Once
}

func NewSession(cfg Config) (*Session, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server URL cannot be empty")
	}
	if cfg.UserId == 0 || cfg.PeerId == 0 {
		return nil, fmt.Errorf("both participant ids are required")
	}

	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[chat-client] ", log.LstdFlags)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	return &Session{
		cfg:    cfg,
		log:    cfg.Logger,
		httpc:  cfg.HTTPClient,
		closed: make(chan struct{}),
	}, nil
}

// RoomId is the deterministic room shared by both participants.
func (s *Session) RoomId() string {
	return server.PairRoomId(s.cfg.UserId, s.cfg.PeerId)
}

// Start connects, joins the room, loads history and marks the counterpart's
// messages read, then begins processing live events. On re-entry after Close
// a fresh Session repeats the whole sequence; there is no resume token.
func (s *Session) Start(ctx context.Context) error {
	if err := s.connect(ctx); err != nil {
		return err
	}

	if err := s.joinRoom(); err != nil {
		return err
	}

	history, err := s.fetchHistory(ctx)
	if err != nil {
		s.getConn().Close()
		return err
	}
	s.mergeHistory(history)

	if _, err := s.MarkRead(ctx); err != nil {
		// non-fatal: read state converges on the next poll
		s.log.Println("mark read:", err)
	}

	go s.readLoop()
	return nil
}

// connect dials the live channel with capped exponential backoff: bounded
// attempts, delay doubling from 1s up to 5s. Close cancels a pending retry.
func (s *Session) connect(ctx context.Context) error {
	var lastErr error
	delay := initialReconnectDelay

	for attempt := 0; attempt < maxConnectAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			case <-s.closed:
				return ErrSessionClosed
			}
			delay = nextDelay(delay)
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.wsURL(), s.authHeader())
		if err == nil {
			s.setConn(conn)
			return nil
		}

		lastErr = err
		s.log.Printf("connect attempt %d: %v", attempt+1, err)
	}

	return fmt.Errorf("connect: %w", lastErr)
}

func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > maxReconnectDelay {
		d = maxReconnectDelay
	}
	return d
}

func (s *Session) joinRoom() error {
	return s.writeEnvelope(&server.ClientMessage{
		Join: &server.JoinRoom{RoomId: s.RoomId()},
	})
}

func (s *Session) readLoop() {
	for {
		var msg server.ServerMessage
		if err := s.getConn().ReadJSON(&msg); err != nil {
			select {
			case <-s.closed:
				return
			default:
			}

			s.log.Println("read:", err)
			if err := s.resync(context.Background()); err != nil {
				s.emitError(err)
				return
			}
			continue
		}

		s.dispatch(&msg)
	}
}

// resync re-runs the full join+history sequence after a dropped connection.
// Live delivery misses while disconnected are recovered from history here.
func (s *Session) resync(ctx context.Context) error {
	if err := s.connect(ctx); err != nil {
		return err
	}
	if err := s.joinRoom(); err != nil {
		return err
	}

	history, err := s.fetchHistory(ctx)
	if err != nil {
		return err
	}
	s.mergeHistory(history)

	if _, err := s.MarkRead(ctx); err != nil {
		s.log.Println("mark read:", err)
	}

	return nil
}

func (s *Session) dispatch(msg *server.ServerMessage) {
	switch {
	case msg.Receive != nil:
		s.reconcile(*msg.Receive)
	case msg.UserTyping != nil:
		if s.cfg.OnTyping != nil {
			s.cfg.OnTyping(msg.UserTyping.SenderId, msg.UserTyping.IsTyping)
		}
	case msg.Error != nil:
		s.emitError(fmt.Errorf("%s", msg.Error.Error))
	case msg.RoomJoined != nil:
		s.log.Printf("joined room %q", msg.RoomJoined.RoomId)
	case msg.Sent != nil:
		// the ack confirms durability; the broadcast copy carries the full
		// record and drives reconciliation
	}
}

// reconcile merges a live-delivered message into the local view without
// double-rendering: duplicates are detected by id first, then by matching an
// optimistic entry on (sender, receiver, timestamp within tolerance).
func (s *Session) reconcile(msg types.Message) {
	s.mu.Lock()

	for _, e := range s.entries {
		if e.msg.Id != 0 && e.msg.Id == msg.Id {
			s.mu.Unlock()
			return
		}
	}

	for i, e := range s.entries {
		if e.token == "" {
			continue
		}
		if e.msg.SenderId == msg.SenderId && e.msg.ReceiverId == msg.ReceiverId &&
			absDuration(e.msg.Timestamp.Sub(msg.Timestamp)) <= reconcileWindow {
			s.entries[i] = entry{msg: msg}
			s.sortLocked()
			s.mu.Unlock()
			return
		}
	}

	s.entries = append(s.entries, entry{msg: msg})
	s.sortLocked()
	s.mu.Unlock()

	if s.cfg.OnMessage != nil {
		s.cfg.OnMessage(msg)
	}
}

// mergeHistory replaces the confirmed portion of the local view with the
// server's history, keeping any still-pending optimistic entries.
func (s *Session) mergeHistory(history []types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []entry
	for _, e := range s.entries {
		if e.token != "" {
			pending = append(pending, e)
		}
	}

	s.entries = s.entries[:0]
	for _, m := range history {
		s.entries = append(s.entries, entry{msg: m})
	}
	s.entries = append(s.entries, pending...)
	s.sortLocked()
}

// sortLocked keeps the view in authoritative (timestamp, id) order; receipt
// order is not trusted.
func (s *Session) sortLocked() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		a, b := s.entries[i].msg, s.entries[j].msg
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Id < b.Id
	})
}

// Messages returns a snapshot of the merged conversation view.
func (s *Session) Messages() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]types.Message, len(s.entries))
	for i, e := range s.entries {
		msgs[i] = e.msg
	}
	return msgs
}

func (s *Session) SendText(text string) error {
	return s.sendMessage(types.MessageTypeText, text, nil)
}

func (s *Session) SendLocation(loc types.Location) error {
	body := loc.Address
	if body == "" {
		body = "Location shared"
	}
	return s.sendMessage(types.MessageTypeLocation, body, &loc)
}

// sendMessage inserts an optimistic local entry keyed by a correlation
// token, then emits the send event. The entry has no id yet; the server
// broadcast replaces it during reconciliation.
func (s *Session) sendMessage(kind, body string, loc *types.Location) error {
	token, err := shortid.Generate()
	if err != nil {
		return fmt.Errorf("correlation token: %w", err)
	}

	local := types.Message{
		SenderId:     s.cfg.UserId,
		ReceiverId:   s.cfg.PeerId,
		Content:      body,
		MessageType:  kind,
		LocationData: loc,
		Timestamp:    time.Now().UTC(),
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry{msg: local, token: token})
	s.mu.Unlock()

	err = s.writeEnvelope(&server.ClientMessage{
		Send: &server.SendMessage{
			SenderId:     local.SenderId,
			ReceiverId:   local.ReceiverId,
			Message:      body,
			MessageType:  kind,
			LocationData: loc,
		},
	})
	if err != nil {
		// roll back so a failed send leaves no ghost entry
		s.removePending(token)
		return err
	}

	return nil
}

func (s *Session) removePending(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		if e.token == token {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

// Typing emits an ephemeral typing indicator. Fire-and-forget: no ack, no
// retry.
func (s *Session) Typing(isTyping bool) error {
	return s.writeEnvelope(&server.ClientMessage{
		Typing: &server.Typing{
			SenderId:   s.cfg.UserId,
			ReceiverId: s.cfg.PeerId,
			IsTyping:   isTyping,
		},
	})
}

// Close leaves the room, stops any pending reconnect and closes the
// connection. The session cannot be restarted; create a new one to re-enter
// the conversation.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		if conn := s.getConn(); conn != nil {
			_ = s.writeEnvelope(&server.ClientMessage{
				Leave: &server.LeaveRoom{RoomId: s.RoomId()},
			})
			err = conn.Close()
		}
	})
	return err
}

func (s *Session) writeEnvelope(msg *server.ClientMessage) error {
	conn := s.getConn()
	if conn == nil {
		return ErrSessionClosed
	}

	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	return conn.WriteJSON(msg)
}

func (s *Session) setConn(conn *websocket.Conn) {
	s.connLock.Lock()
	defer s.connLock.Unlock()
	s.conn = conn
}

func (s *Session) getConn() *websocket.Conn {
	s.connLock.Lock()
	defer s.connLock.Unlock()
	return s.conn
}

func (s *Session) emitError(err error) {
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
}

func (s *Session) wsURL() string {
	u, err := url.Parse(s.cfg.ServerURL)
	if err != nil {
		return s.cfg.ServerURL
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	return u.String()
}

func (s *Session) authHeader() http.Header {
	h := http.Header{}
	if s.cfg.Token != "" {
		h.Set("Authorization", "Bearer "+s.cfg.Token)
	}
	return h
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
