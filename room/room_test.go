package room

import (
	"sync"
	"testing"
)

func TestAttachAtMostOneHost(t *testing.T) {
	r := newTestRoom(t)

	if _, err := r.Attach("GM", true, &fakeConn{}); err != nil {
		t.Fatalf("first host attach failed: %v", err)
	}

	if _, err := r.Attach("Impostor", true, &fakeConn{}); err == nil {
		t.Fatal("second host with a different nickname should be rejected")
	}

	if got := r.Host().Nickname; got != "GM" {
		t.Errorf("host = %q, want %q", got, "GM")
	}
}

func TestHostReconnectReplacesHandle(t *testing.T) {
	r := newTestRoom(t)

	first, err := r.Attach("GM", true, &fakeConn{})
	if err != nil {
		t.Fatalf("host attach failed: %v", err)
	}

	second, err := r.Attach("GM", true, &fakeConn{})
	if err != nil {
		t.Fatalf("host reconnect failed: %v", err)
	}

	if first != second {
		t.Error("host reconnect created a new client record")
	}
}

func TestPlayerReconnectKeepsScore(t *testing.T) {
	r := newTestRoom(t)
	populateRoom(t, r, "GM", "Ann")

	ann := clientByNickname(t, r, "Ann")
	r.ReportScore(ann, 10, 0)

	again, err := r.Attach("Ann", false, &fakeConn{})
	if err != nil {
		t.Fatalf("reconnect failed: %v", err)
	}

	if again != ann {
		t.Fatal("reconnect created a new client record")
	}
	if got := again.Score(); got != 10 {
		t.Errorf("score after reconnect = %d, want 10", got)
	}
	if got := r.PlayerCount(); got != 1 {
		t.Errorf("player count = %d, want 1", got)
	}
}

func TestStaleCloseDoesNotEvictReconnectedPlayer(t *testing.T) {
	r := newTestRoom(t)

	oldConn := &fakeConn{}
	ann, err := r.Attach("Ann", false, oldConn)
	if err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	newConn := &fakeConn{}
	if _, err := r.Attach("Ann", false, newConn); err != nil {
		t.Fatalf("reconnect failed: %v", err)
	}

	// The close event for the superseded socket arrives late.
	r.Detach(ann, oldConn)

	if got := r.PlayerCount(); got != 1 {
		t.Fatalf("player count after stale close = %d, want 1", got)
	}

	// A close on the live handle removes the record for real.
	r.Detach(ann, newConn)

	if got := r.PlayerCount(); got != 0 {
		t.Errorf("player count after live close = %d, want 0", got)
	}
}

func TestDetachRacingReconnectKeepsFreshRecord(t *testing.T) {
	r := newTestRoom(t)

	conn := &fakeConn{}
	if _, err := r.Attach("Ann", false, conn); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	// The old socket's close handler and the replacement Attach run on
	// different connection goroutines; whichever order they land in, the
	// fresh record must survive with its new transport intact.
	for i := 0; i < 100; i++ {
		old := conn
		next := &fakeConn{}
		ann := clientByNickname(t, r, "Ann")

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := r.Attach("Ann", false, next); err != nil {
				t.Errorf("reconnect failed: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			r.Detach(ann, old)
		}()
		wg.Wait()

		if got := r.PlayerCount(); got != 1 {
			t.Fatalf("player count = %d after racing close and reconnect, want 1", got)
		}
		next.mu.Lock()
		evicted := next.closed
		next.mu.Unlock()
		if evicted {
			t.Fatal("stale close shut the freshly-attached transport")
		}

		conn = next
	}
}

func TestHostDisconnectKeepsSlot(t *testing.T) {
	r := newTestRoom(t)

	conn := &fakeConn{}
	host, err := r.Attach("GM", true, conn)
	if err != nil {
		t.Fatalf("host attach failed: %v", err)
	}

	r.Detach(host, conn)

	if r.Host() == nil {
		t.Error("host slot cleared by disconnect; only an explicit close may clear it")
	}
}

func TestPlayerListSnapshot(t *testing.T) {
	r := newTestRoom(t)
	populateRoom(t, r, "GM", "Ben", "Ann")

	update := r.PlayerList()

	want := []PlayerInfo{
		{Nickname: "GM", IsHost: true, Score: 0},
		{Nickname: "Ann", IsHost: false, Score: 0},
		{Nickname: "Ben", IsHost: false, Score: 0},
	}

	if len(update.Data) != len(want) {
		t.Fatalf("roster has %d rows, want %d", len(update.Data), len(want))
	}
	for i, row := range want {
		if update.Data[i] != row {
			t.Errorf("roster[%d] = %+v, want %+v", i, update.Data[i], row)
		}
	}

	if !update.WaitingForPlayers || update.GameStarted || update.GameEnded {
		t.Errorf("flags = {waiting:%t started:%t ended:%t}, want waiting only",
			update.WaitingForPlayers, update.GameStarted, update.GameEnded)
	}
}
