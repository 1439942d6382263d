package room

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Logf is injected by the caller so tests can silence room logging.
type Logf func(format string, args ...any)

// Conn is the subset of *websocket.Conn the room layer needs, kept as an
// interface so tests can stand in a fake transport.
type Conn interface {
	WriteJSON(v any) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

var errNotConnected = errors.New("client has no live connection")

// Client is one participant in a room. Its transport handle is replaced on
// reconnection without touching nickname or score.
type Client struct {
	Nickname string
	IsHost   bool

	mu    sync.Mutex
	score int
	conn  Conn
}

func newClient(nickname string, isHost bool, conn Conn) *Client {
	return &Client{
		Nickname: nickname,
		IsHost:   isHost,
		conn:     conn,
	}
}

// Send writes one JSON frame to the client's current transport. The mutex
// also serializes writers, which gorilla/websocket requires.
func (c *Client) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errNotConnected
	}
	return c.conn.WriteJSON(v)
}

// SendError delivers an error reply to this client only, best-effort.
func (c *Client) SendError(message string) {
	_ = c.Send(ErrorMessage{Type: TypeError, Message: message})
}

func (c *Client) Score() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.score
}

func (c *Client) setScore(score int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.score = score
}

func (c *Client) attach(conn Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.conn != conn {
		_ = c.conn.Close()
	}
	c.conn = conn
}

// connIs reports whether conn is still this client's live transport. A close
// event from a superseded handle must not evict a freshly-reconnected client.
func (c *Client) connIs(conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn == conn
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// State is the room's session phase.
type State string

const (
	StateWaiting State = "waiting"
	StatePlaying State = "playing"
	StateEnded   State = "ended"
)

// Room holds one game session: at most one host, any number of players,
// and a single waiting→playing→ended lifecycle.
//
// Player records are kept under two indices: the conns set keyed by record
// for O(1) disconnect cleanup, and byNickname for reconnection lookup.
type Room struct {
	ID string

	mu         sync.Mutex
	host       *Client
	conns      map[*Client]struct{}
	byNickname map[string]*Client

	state        State
	numPairs     int
	gameTime     int
	totalPlayers int
	timer        *time.Timer

	logf Logf
}

func newRoom(id string, logf Logf) *Room {
	return &Room{
		ID:         id,
		conns:      make(map[*Client]struct{}),
		byNickname: make(map[string]*Client),
		state:      StateWaiting,
		logf:       logf,
	}
}

func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

// Host returns the current host client, or nil if none has connected yet.
func (r *Room) Host() *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.host
}

// Attach registers a connection under (nickname, isHost), reusing an
// existing record when the nickname is already known so a reconnecting
// participant keeps their score.
func (r *Room) Attach(nickname string, isHost bool, conn Conn) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if isHost {
		switch {
		case r.host == nil:
			r.host = newClient(nickname, true, conn)
		case r.host.Nickname == nickname:
			r.host.attach(conn)
		default:
			return nil, errors.New("room already has a host")
		}
		r.logf("ROOMS: Host %q connected to %s", nickname, r.ID)
		return r.host, nil
	}

	if existing, ok := r.byNickname[nickname]; ok {
		existing.attach(conn)
		r.logf("ROOMS: Player %q reconnected to %s", nickname, r.ID)
		return existing, nil
	}

	client := newClient(nickname, false, conn)
	r.conns[client] = struct{}{}
	r.byNickname[nickname] = client
	r.logf("ROOMS: Player %q joined %s", nickname, r.ID)
	return client, nil
}

// Detach handles a socket close for client. The record is removed only if
// conn is still the client's live handle; a stale close event after a
// reconnection leaves the fresh record untouched. The host slot is never
// cleared on disconnect, only by an explicit room close.
func (r *Room) Detach(client *Client, conn Conn) {
	r.mu.Lock()

	// The staleness check shares the critical section with the removal:
	// Attach holds r.mu while installing a replacement transport, so a
	// reconnect cannot slip in between the check and the delete.
	if !client.connIs(conn) {
		r.mu.Unlock()
		r.logf("ROOMS: Ignoring stale close for %q in %s", client.Nickname, r.ID)
		return
	}

	if client.IsHost {
		client.closeConn()
		r.mu.Unlock()
		r.logf("ROOMS: Host %q disconnected from %s", client.Nickname, r.ID)
	} else {
		delete(r.conns, client)
		if r.byNickname[client.Nickname] == client {
			delete(r.byNickname, client.Nickname)
		}
		client.closeConn()
		r.mu.Unlock()
		r.logf("ROOMS: Player %q left %s", client.Nickname, r.ID)
	}

	r.BroadcastPlayerList()
}

// PlayerCount returns the number of registered non-host players.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.conns)
}

// closeNormal performs a deliberate close: the normal-closure code tells
// well-behaved clients not to attempt reconnection.
func (c *Client) closeNormal(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return
	}
	deadline := time.Now().Add(time.Second)
	data := websocket.FormatCloseMessage(websocket.CloseNormalClosure, message)
	_ = c.conn.WriteControl(websocket.CloseMessage, data, deadline)
	_ = c.conn.Close()
	c.conn = nil
}

// closeAll disconnects everyone in the room with a normal closure.
func (r *Room) closeAll() {
	r.mu.Lock()
	host := r.host
	clients := make([]*Client, 0, len(r.conns))
	for c := range r.conns {
		clients = append(clients, c)
	}
	r.mu.Unlock()

	if host != nil {
		host.closeNormal("room closed")
	}
	for _, c := range clients {
		c.closeNormal("room closed")
	}
}
