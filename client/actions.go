package client

import (
	"github.com/DukeHsieh/gogokoov1-sub000/room"
)

// Thin senders for the control messages the coordination layer understands.
// Mini-game-specific traffic goes through Send directly.

// AnnounceJoin asks the server to push a fresh roster to the room.
func (m *Manager) AnnounceJoin() error {
	return m.Send(map[string]any{"type": room.TypeJoin})
}

// StartGame requests the waiting→playing transition. Host only; non-hosts
// get an error push back on their own socket.
func (m *Manager) StartGame(numPairs, gameTime int) error {
	return m.Send(map[string]any{
		"type":     room.TypeHostStartGame,
		"numPairs": numPairs,
		"gameTime": gameTime,
	})
}

// ReportScore reports this player's current mini-game score. A
// matchedPairs count equal to the session's pair total signals completion.
func (m *Manager) ReportScore(score, matchedPairs int) error {
	return m.Send(map[string]any{
		"type":         room.TypeFlipCard,
		"score":        score,
		"matchedPairs": matchedPairs,
	})
}

// CloseRoom asks the server to tear the room down. Host only.
func (m *Manager) CloseRoom() error {
	return m.Send(map[string]any{"type": room.TypeHostCloseGame})
}
