package room

import "testing"

func TestBroadcastSurvivesFailingSocket(t *testing.T) {
	r := newTestRoom(t)
	conns := populateRoom(t, r, "GM", "Ann", "Ben")

	conns["Ann"].failWrites = true

	r.Broadcast(GameStartedMessage{Type: TypeGameStarted})

	for _, nickname := range []string{"GM", "Ben"} {
		if n := conns[nickname].countType(TypeGameStarted); n != 1 {
			t.Errorf("%s received %d frames, want 1 despite Ann's socket failing", nickname, n)
		}
	}
}

func TestBroadcastReachesHostAndPlayers(t *testing.T) {
	r := newTestRoom(t)
	conns := populateRoom(t, r, "GM", "Ann", "Ben")

	r.Broadcast(GameStartedMessage{Type: TypeGameStarted})

	for nickname, conn := range conns {
		if n := conn.countType(TypeGameStarted); n != 1 {
			t.Errorf("%s received %d frames, want 1", nickname, n)
		}
	}
}

func TestBroadcastWithoutHost(t *testing.T) {
	r := newTestRoom(t)
	conns := populateRoom(t, r, "", "Ann")

	r.Broadcast(GameStartedMessage{Type: TypeGameStarted})

	if n := conns["Ann"].countType(TypeGameStarted); n != 1 {
		t.Errorf("player received %d frames in a hostless room, want 1", n)
	}
}

func TestPlayerListFlagsTrackState(t *testing.T) {
	r := newTestRoom(t)
	populateRoom(t, r, "GM", "Ann")
	host := clientByNickname(t, r, "GM")

	if err := r.StartGame(host, 8, 600); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}

	update := r.PlayerList()
	if update.WaitingForPlayers || !update.GameStarted || update.GameEnded {
		t.Errorf("playing flags = {waiting:%t started:%t ended:%t}",
			update.WaitingForPlayers, update.GameStarted, update.GameEnded)
	}

	r.EndGame(ReasonTimeUp)

	update = r.PlayerList()
	if update.WaitingForPlayers || !update.GameStarted || !update.GameEnded {
		t.Errorf("ended flags = {waiting:%t started:%t ended:%t}",
			update.WaitingForPlayers, update.GameStarted, update.GameEnded)
	}
}
