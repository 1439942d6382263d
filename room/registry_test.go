package room

import "testing"

func TestGetOrCreateIsIdempotent(t *testing.T) {
	registry := NewRegistry(nil)

	first := registry.GetOrCreate("123456")
	second := registry.GetOrCreate("123456")

	if first != second {
		t.Error("GetOrCreate returned a different room for the same id")
	}
}

func TestGetUnknownRoom(t *testing.T) {
	registry := NewRegistry(nil)

	if registry.Get("000000") != nil {
		t.Error("Get returned a room that was never created")
	}
}

func TestRemoveDisconnectsEveryone(t *testing.T) {
	registry := NewRegistry(nil)
	r := registry.GetOrCreate("123456")

	hostConn := &fakeConn{}
	playerConn := &fakeConn{}
	if _, err := r.Attach("GM", true, hostConn); err != nil {
		t.Fatalf("host attach failed: %v", err)
	}
	if _, err := r.Attach("Ann", false, playerConn); err != nil {
		t.Fatalf("player attach failed: %v", err)
	}

	registry.Remove("123456")

	if registry.Get("123456") != nil {
		t.Error("room still registered after Remove")
	}
	if !hostConn.closed || !playerConn.closed {
		t.Errorf("sockets not closed: host=%t player=%t", hostConn.closed, playerConn.closed)
	}

	// Removing twice is harmless.
	registry.Remove("123456")
}

func TestRoomIDsSnapshot(t *testing.T) {
	registry := NewRegistry(nil)
	registry.GetOrCreate("333333")
	registry.GetOrCreate("111111")

	ids := registry.RoomIDs()
	if len(ids) != 2 || ids[0] != "111111" || ids[1] != "333333" {
		t.Errorf("RoomIDs = %v, want sorted [111111 333333]", ids)
	}
}

func TestNewRoomCodeShapeAndUniqueness(t *testing.T) {
	registry := NewRegistry(nil)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code := registry.NewRoomCode()

		if len(code) != roomCodeDigits {
			t.Fatalf("code %q has %d characters, want %d", code, len(code), roomCodeDigits)
		}
		for _, ch := range code {
			if ch < '0' || ch > '9' {
				t.Fatalf("code %q contains non-digit %q", code, ch)
			}
		}

		// Occupy the code so the collision check is exercised.
		registry.GetOrCreate(code)

		if seen[code] {
			t.Fatalf("code %q minted twice despite a live room", code)
		}
		seen[code] = true
	}
}
