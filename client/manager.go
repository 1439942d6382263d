// Package client provides the single logical WebSocket connection shared by
// everything on the client side of a game room: one socket per
// (room, nickname), promise-style connect with reconnection, a subscriber
// registry for inbound pushes, and near-duplicate suppression.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
)

var (
	// ErrSessionActive is returned when a caller asks for a different room
	// while a game is in progress on the current one. The active session is
	// never torn down implicitly.
	ErrSessionActive = errors.New("a game is active on another room")

	// ErrRetriesExhausted is the terminal failure after the reconnection
	// budget runs out.
	ErrRetriesExhausted = errors.New("reconnection retries exhausted")

	// ErrClosed is returned once the manager has been closed.
	ErrClosed = errors.New("connection manager is closed")

	errNotConnected = errors.New("not connected")
)

// ConnState is the manager's explicit connection state. Reuse of an
// in-flight or open connection is a checked transition on this enum rather
// than an ad hoc property check.
type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("ConnState(%d)", int(s))
}

// Message is one inbound server push.
type Message struct {
	Type string
	Raw  json.RawMessage
}

// Decode unmarshals the full frame into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Raw, v)
}

// Handler receives every inbound message. Handlers run sequentially off the
// socket's read loop; long-running work should be handed to another
// goroutine so one slow subscriber cannot delay the rest.
type Handler func(msg Message)

// Options tune a Manager. The zero value of each field selects a default.
type Options struct {
	Dialer      *websocket.Dialer
	Logf        func(format string, args ...any)
	DedupWindow time.Duration // near-duplicate suppression window
	MaxRetries  int           // reconnection budget per disconnect
	BackoffMin  time.Duration
	BackoffMax  time.Duration
}

type sessionKey struct {
	roomID   string
	nickname string
}

// Manager multiplexes one WebSocket per room across many subscribers.
// Construct one per application context with New; it is safe for concurrent
// use.
type Manager struct {
	baseURL     string
	dialer      *websocket.Dialer
	logf        func(format string, args ...any)
	dedupWindow time.Duration
	maxRetries  int
	backoffMin  time.Duration
	backoffMax  time.Duration

	mu      sync.Mutex
	state   ConnState
	key     sessionKey
	isHost  bool
	conn    *websocket.Conn
	gen     int           // bumped per physical connection; stale loops check it
	pending chan struct{} // closed when a Connecting state resolves
	connErr error         // terminal error, set when state becomes Closed
	active  bool
	closed  bool

	writeMu sync.Mutex

	handlersMu sync.Mutex
	handlers   map[string]Handler

	seenMu sync.Mutex
	seen   map[string]time.Time

	dispatch chan Message
	quit     chan struct{}
}

// New creates a Manager talking to a server at baseURL, e.g.
// "ws://localhost:8080". opts may be nil.
func New(baseURL string, opts *Options) *Manager {
	if opts == nil {
		opts = &Options{}
	}

	m := &Manager{
		baseURL:     baseURL,
		dialer:      opts.Dialer,
		logf:        opts.Logf,
		dedupWindow: opts.DedupWindow,
		maxRetries:  opts.MaxRetries,
		backoffMin:  opts.BackoffMin,
		backoffMax:  opts.BackoffMax,
		handlers:    make(map[string]Handler),
		seen:        make(map[string]time.Time),
		dispatch:    make(chan Message, 64),
		quit:        make(chan struct{}),
	}

	if m.dialer == nil {
		m.dialer = websocket.DefaultDialer
	}
	if m.logf == nil {
		m.logf = func(string, ...any) {}
	}
	if m.dedupWindow == 0 {
		m.dedupWindow = 50 * time.Millisecond
	}
	if m.maxRetries == 0 {
		m.maxRetries = 5
	}
	if m.backoffMin == 0 {
		m.backoffMin = time.Second
	}
	if m.backoffMax == 0 {
		m.backoffMax = 30 * time.Second
	}

	go m.dispatchLoop()

	return m
}

// Connect opens (or reuses) the session socket for (roomID, nickname).
// A live or in-flight connection for the same pair is returned as-is, even
// when isHost differs from the earlier call: the role label may be refined
// later by a different caller on the same physical session. Requesting a
// different room while a game is active fails fast with ErrSessionActive.
func (m *Manager) Connect(ctx context.Context, roomID, nickname string, isHost bool) error {
	key := sessionKey{roomID: roomID, nickname: nickname}

	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}

	switch m.state {
	case StateOpen:
		if m.key == key {
			m.mu.Unlock()
			return nil
		}
		if m.active {
			m.mu.Unlock()
			return ErrSessionActive
		}
		// Different room, no active game: drop the old socket and redial.
		old := m.conn
		m.conn = nil
		m.gen++
		m.mu.Unlock()
		if old != nil {
			_ = old.Close()
		}
		m.mu.Lock()
		// The lock was dropped to close the old socket; a concurrent Close
		// may have won the race, and a closed manager must stay closed.
		if m.closed {
			m.mu.Unlock()
			return ErrClosed
		}

	case StateConnecting:
		if m.key == key {
			ch := m.pending
			m.mu.Unlock()
			select {
			case <-ch:
			case <-ctx.Done():
				return ctx.Err()
			}
			m.mu.Lock()
			err := m.connErr
			m.mu.Unlock()
			return err
		}
		if m.active {
			m.mu.Unlock()
			return ErrSessionActive
		}
		inFlight := m.key.roomID
		m.mu.Unlock()
		return fmt.Errorf("connection to room %s still in flight", inFlight)

	case StateClosed:
		// A previous session ended; a new Connect starts over.
	}

	m.state = StateConnecting
	m.key = key
	m.isHost = isHost
	m.connErr = nil
	m.pending = make(chan struct{})
	ch := m.pending
	m.mu.Unlock()

	conn, err := m.dial(ctx, key, isHost)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		if conn != nil {
			_ = conn.Close()
		}
		return ErrClosed
	}

	if err != nil {
		m.state = StateClosed
		m.connErr = err
		close(ch)
		m.pending = nil
		return err
	}

	m.adoptLocked(conn)
	close(ch)
	m.pending = nil
	return nil
}

func (m *Manager) dial(ctx context.Context, key sessionKey, isHost bool) (*websocket.Conn, error) {
	q := url.Values{}
	q.Set("roomId", key.roomID)
	q.Set("nickname", key.nickname)
	q.Set("isHost", fmt.Sprintf("%t", isHost))

	endpoint := m.baseURL + "/ws?" + q.Encode()

	conn, resp, err := m.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	return conn, nil
}

// adoptLocked installs conn as the live transport and starts its read loop.
// Assumes m.mu is held.
func (m *Manager) adoptLocked(conn *websocket.Conn) {
	m.gen++
	m.conn = conn
	m.state = StateOpen
	m.logf("CLIENT: Connected to room %s as %q", m.key.roomID, m.key.nickname)
	go m.readLoop(conn, m.gen)
}

func (m *Manager) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleDisconnect(conn, gen, err)
			return
		}
		m.deliver(data)
	}
}

func (m *Manager) handleDisconnect(conn *websocket.Conn, gen int, err error) {
	_ = conn.Close()

	m.mu.Lock()

	if m.closed || m.gen != gen {
		// This socket was already superseded by a newer connection.
		m.mu.Unlock()
		return
	}

	m.conn = nil

	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		m.logf("CLIENT: Connection to room %s closed normally", m.key.roomID)
		m.state = StateClosed
		m.mu.Unlock()
		return
	}

	m.logf("CLIENT: Abnormal close for room %s, reconnecting: %v", m.key.roomID, err)
	m.state = StateConnecting
	m.pending = make(chan struct{})
	m.mu.Unlock()

	go m.reconnect(gen)
}

// reconnect redials with doubling delay until the retry budget runs out.
// The terminal failure is surfaced to anyone waiting on Connect.
func (m *Manager) reconnect(gen int) {
	b := &backoff.Backoff{
		Min:    m.backoffMin,
		Max:    m.backoffMax,
		Factor: 2,
	}

	for attempt := 1; attempt <= m.maxRetries; attempt++ {
		delay := b.Duration()
		m.logf("CLIENT: Reconnect attempt %d/%d in %s", attempt, m.maxRetries, delay)

		select {
		case <-time.After(delay):
		case <-m.quit:
			return
		}

		m.mu.Lock()
		if m.closed || m.gen != gen {
			m.resolvePendingLocked(ErrClosed)
			m.mu.Unlock()
			return
		}
		key, isHost := m.key, m.isHost
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		conn, err := m.dial(ctx, key, isHost)
		cancel()

		if err != nil {
			m.logf("CLIENT: Reconnect attempt %d failed: %v", attempt, err)
			continue
		}

		m.mu.Lock()
		if m.closed || m.gen != gen {
			m.mu.Unlock()
			_ = conn.Close()
			return
		}
		m.adoptLocked(conn)
		m.resolvePendingLocked(nil)
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	if !m.closed && m.gen == gen {
		m.state = StateClosed
		m.resolvePendingLocked(ErrRetriesExhausted)
	}
	m.mu.Unlock()
}

// resolvePendingLocked wakes Connect callers blocked on the current
// in-flight attempt. Assumes m.mu is held.
func (m *Manager) resolvePendingLocked(err error) {
	m.connErr = err
	if m.pending != nil {
		close(m.pending)
		m.pending = nil
	}
}

// State returns the current connection state.
func (m *Manager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// MarkActive flags a game as in progress, which makes Connect calls for a
// different room fail fast instead of tearing the session down.
func (m *Manager) MarkActive(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active = active
}

// Send writes one JSON message on the session socket.
func (m *Manager) Send(v any) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return errNotConnected
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	return conn.WriteJSON(v)
}

// Close shuts the manager down for good: a close frame with the normal
// closure code is sent so the server (and our own read loop) treat this as
// deliberate, and no reconnection is attempted.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.state = StateClosed
	conn := m.conn
	m.conn = nil
	m.resolvePendingLocked(ErrClosed)
	m.mu.Unlock()

	close(m.quit)

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	}

	return nil
}
