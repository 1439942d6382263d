package room

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotHost        = errors.New("only the host may do that")
	ErrAlreadyStarted = errors.New("the game has already started")
	ErrSessionOver    = errors.New("this room's game is over")
)

// StartGame performs the waiting→playing transition. Only the registered
// host may start, parameters must be positive, and a room runs exactly one
// session: starting again after the game ended is rejected.
//
// On success, gameStarted is broadcast strictly before gameData; players
// gate UI transitions on the former and only then expect the latter.
func (r *Room) StartGame(caller *Client, numPairs, gameTime int) error {
	r.mu.Lock()

	if caller != r.host {
		r.mu.Unlock()
		return ErrNotHost
	}
	switch r.state {
	case StatePlaying:
		r.mu.Unlock()
		return ErrAlreadyStarted
	case StateEnded:
		r.mu.Unlock()
		return ErrSessionOver
	}
	if numPairs <= 0 {
		r.mu.Unlock()
		return fmt.Errorf("numPairs must be a positive integer, got %d", numPairs)
	}
	if gameTime <= 0 {
		r.mu.Unlock()
		return fmt.Errorf("gameTime must be a positive integer, got %d", gameTime)
	}

	r.state = StatePlaying
	r.numPairs = numPairs
	r.gameTime = gameTime
	r.totalPlayers = len(r.conns)
	r.timer = time.AfterFunc(time.Duration(gameTime)*time.Second, func() {
		r.EndGame(ReasonTimeUp)
	})

	started := GameStartedMessage{Type: TypeGameStarted}
	data := GameDataMessage{
		Type:         TypeGameData,
		NumPairs:     numPairs,
		GameTime:     gameTime,
		TotalPlayers: r.totalPlayers,
	}
	recipients := r.recipientsLocked()
	r.mu.Unlock()

	r.logf("ROOMS: Game started in %s (numPairs=%d gameTime=%ds players=%d)",
		r.ID, numPairs, gameTime, data.TotalPlayers)

	r.sendAll(recipients, started)
	r.sendAll(recipients, data)

	return nil
}

// EndGame performs the playing→ended transition and reports whether it
// acted. Idempotent: the timer firing, a host close, and a completion
// signal may race, but only the first caller broadcasts gameEnded. The
// timer handle is cleared under the lock before anything else happens, so
// a superseded deadline can never produce a second broadcast.
func (r *Room) EndGame(reason string) bool {
	r.mu.Lock()

	if r.state != StatePlaying {
		r.mu.Unlock()
		return false
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.state = StateEnded

	ended := GameEndedMessage{Type: TypeGameEnded, Reason: reason}
	update := r.playerListLocked()
	recipients := r.recipientsLocked()
	r.mu.Unlock()

	r.logf("ROOMS: Game ended in %s: %s", r.ID, reason)

	r.sendAll(recipients, ended)
	r.sendAll(recipients, update)

	return true
}

// ReportScore records a mini-game score for client and broadcasts a
// scoreUpdate followed by a refreshed roster. The score value itself is
// owned by the mini-game; the room only relays it. A matchedPairs count
// reaching the session's pair total is the mini-game's completion signal
// and ends the game.
func (r *Room) ReportScore(client *Client, score, matchedPairs int) {
	client.setScore(score)

	r.mu.Lock()
	numPairs := r.numPairs
	playing := r.state == StatePlaying
	update := r.playerListLocked()
	recipients := r.recipientsLocked()
	r.mu.Unlock()

	r.sendAll(recipients, ScoreUpdateMessage{
		Type:     TypeScoreUpdate,
		Nickname: client.Nickname,
		Score:    score,
	})
	r.sendAll(recipients, update)

	if playing && numPairs > 0 && matchedPairs >= numPairs {
		r.EndGame(ReasonAllPairsFound)
	}
}
