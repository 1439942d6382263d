package client

import (
	"encoding/json"
	"fmt"
	"time"
)

// Subscribe registers a named handler. Every registered handler receives
// every inbound message; registering under an existing id replaces that
// handler.
func (m *Manager) Subscribe(id string, h Handler) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()

	m.handlers[id] = h
}

// Unsubscribe removes the handler registered under id.
func (m *Manager) Unsubscribe(id string) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()

	delete(m.handlers, id)
}

// deliver runs on the read loop: suppress near-duplicates, then hand the
// message to the dispatch loop through a buffered channel so slow handlers
// never stall socket reads.
func (m *Manager) deliver(data []byte) {
	var peek struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		m.logf("CLIENT: Dropping malformed frame: %v", err)
		return
	}

	if m.isDuplicate(data, peek.Type) {
		m.logf("CLIENT: Suppressed duplicate %q push", peek.Type)
		return
	}

	msg := Message{Type: peek.Type, Raw: json.RawMessage(data)}
	select {
	case m.dispatch <- msg:
	case <-m.quit:
	}
}

// isDuplicate drops an exact repeat of a recent push, fingerprinted by type
// plus every state-bearing field: identity, roster contents, and session
// flags. Two pushes with different rosters are never repeats. This is an
// anti-flicker heuristic for UI flows that can trigger equivalent pushes in
// quick succession; it is not an exactly-once guarantee and game logic must
// not rely on it.
func (m *Manager) isDuplicate(data []byte, msgType string) bool {
	var salient struct {
		Nickname string          `json:"nickname"`
		Score    json.Number     `json:"score"`
		Reason   string          `json:"reason"`
		Message  string          `json:"message"`
		Data     json.RawMessage `json:"data"`
		Waiting  bool            `json:"waitingForPlayers"`
		Started  bool            `json:"gameStarted"`
		Ended    bool            `json:"gameEnded"`
	}
	_ = json.Unmarshal(data, &salient)

	fp := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%t|%t|%t",
		msgType, salient.Nickname, salient.Score, salient.Reason, salient.Message,
		salient.Data, salient.Waiting, salient.Started, salient.Ended)

	now := time.Now()

	m.seenMu.Lock()
	defer m.seenMu.Unlock()

	if last, ok := m.seen[fp]; ok && now.Sub(last) < m.dedupWindow {
		return true
	}
	m.seen[fp] = now

	// Keep the window map from growing without bound.
	if len(m.seen) > 256 {
		cutoff := now.Add(-m.dedupWindow)
		for k, t := range m.seen {
			if t.Before(cutoff) {
				delete(m.seen, k)
			}
		}
	}

	return false
}

func (m *Manager) dispatchLoop() {
	for {
		select {
		case msg := <-m.dispatch:
			m.fanOut(msg)
		case <-m.quit:
			return
		}
	}
}

// fanOut multicasts msg to every registered handler. A panicking handler is
// isolated: the remaining handlers still run.
func (m *Manager) fanOut(msg Message) {
	m.handlersMu.Lock()
	handlers := make(map[string]Handler, len(m.handlers))
	for id, h := range m.handlers {
		handlers[id] = h
	}
	m.handlersMu.Unlock()

	for id, h := range handlers {
		m.runHandler(id, h, msg)
	}
}

func (m *Manager) runHandler(id string, h Handler, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			m.logf("CLIENT: Handler %q panicked on %q message: %v", id, msg.Type, r)
		}
	}()

	h(msg)
}
