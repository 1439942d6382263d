package room

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeConn records every frame written to it and can be told to fail, so
// fan-out behavior is observable without real sockets.
type fakeConn struct {
	mu         sync.Mutex
	frames     []any
	failWrites bool
	closed     bool
}

func (f *fakeConn) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWrites {
		return errors.New("write failed")
	}
	f.frames = append(f.frames, v)
	return nil
}

func (f *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}

func (f *fakeConn) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.frames))
	for _, v := range f.frames {
		switch msg := v.(type) {
		case GameStartedMessage:
			out = append(out, msg.Type)
		case GameDataMessage:
			out = append(out, msg.Type)
		case GameEndedMessage:
			out = append(out, msg.Type)
		case PlayerListUpdate:
			out = append(out, msg.Type)
		case ScoreUpdateMessage:
			out = append(out, msg.Type)
		case ErrorMessage:
			out = append(out, msg.Type)
		case RoomClosedMessage:
			out = append(out, msg.Type)
		case json.RawMessage:
			var peek struct {
				Type string `json:"type"`
			}
			_ = json.Unmarshal(msg, &peek)
			out = append(out, peek.Type)
		default:
			out = append(out, "unknown")
		}
	}
	return out
}

func (f *fakeConn) countType(want string) int {
	n := 0
	for _, typ := range f.types() {
		if typ == want {
			n++
		}
	}
	return n
}

func (f *fakeConn) lastOfType(t *testing.T, want string) any {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.frames) - 1; i >= 0; i-- {
		switch msg := f.frames[i].(type) {
		case GameEndedMessage:
			if want == TypeGameEnded {
				return msg
			}
		case PlayerListUpdate:
			if want == TypePlayerListUpdate {
				return msg
			}
		case ScoreUpdateMessage:
			if want == TypeScoreUpdate {
				return msg
			}
		case ErrorMessage:
			if want == TypeError {
				return msg
			}
		}
	}

	t.Fatalf("no %q frame recorded", want)
	return nil
}

func newTestRoom(t *testing.T) *Room {
	t.Helper()
	return NewRegistry(nil).GetOrCreate("482913")
}

// populateRoom attaches a host and players, returning their fake conns
// keyed by nickname.
func populateRoom(t *testing.T, r *Room, host string, players ...string) map[string]*fakeConn {
	t.Helper()

	conns := make(map[string]*fakeConn)

	if host != "" {
		conn := &fakeConn{}
		if _, err := r.Attach(host, true, conn); err != nil {
			t.Fatalf("attaching host %q: %v", host, err)
		}
		conns[host] = conn
	}

	for _, nickname := range players {
		conn := &fakeConn{}
		if _, err := r.Attach(nickname, false, conn); err != nil {
			t.Fatalf("attaching player %q: %v", nickname, err)
		}
		conns[nickname] = conn
	}

	return conns
}

func clientByNickname(t *testing.T, r *Room, nickname string) *Client {
	t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.host != nil && r.host.Nickname == nickname {
		return r.host
	}
	if c, ok := r.byNickname[nickname]; ok {
		return c
	}

	t.Fatalf("no client %q in room %s", nickname, r.ID)
	return nil
}
