package room

import (
	"crypto/rand"
	"sort"
	"sync"
)

// Registry maps room identifiers to live rooms. Rooms are created lazily on
// first connection and removed only by an explicit host close, never by
// emptiness or game end.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
	logf  Logf
}

func NewRegistry(logf Logf) *Registry {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Registry{
		rooms: make(map[string]*Room),
		logf:  logf,
	}
}

// GetOrCreate returns the room for id, creating it if unknown. Idempotent.
func (reg *Registry) GetOrCreate(id string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if r, ok := reg.rooms[id]; ok {
		return r
	}

	r := newRoom(id, reg.logf)
	reg.rooms[id] = r
	reg.logf("ROOMS: Created room %s", id)
	return r
}

// Get returns the room for id, or nil if it does not exist.
func (reg *Registry) Get(id string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	return reg.rooms[id]
}

// Remove drops the room for id and disconnects everyone in it.
func (reg *Registry) Remove(id string) {
	reg.mu.Lock()
	r, ok := reg.rooms[id]
	if ok {
		delete(reg.rooms, id)
	}
	reg.mu.Unlock()

	if !ok {
		return
	}

	reg.logf("ROOMS: Removed room %s", id)
	r.closeAll()
}

// RoomIDs returns a sorted snapshot of live room identifiers.
func (reg *Registry) RoomIDs() []string {
	reg.mu.Lock()
	ids := make([]string, 0, len(reg.rooms))
	for id := range reg.rooms {
		ids = append(ids, id)
	}
	reg.mu.Unlock()

	sort.Strings(ids)
	return ids
}

const roomCodeDigits = 6

// NewRoomCode mints a 6-digit room code that no live room is using.
func (reg *Registry) NewRoomCode() string {
	for {
		buf := make([]byte, roomCodeDigits)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, roomCodeDigits)
		for i := range out {
			out[i] = '0' + buf[i]%10
		}
		id := string(out)

		reg.mu.Lock()
		_, exists := reg.rooms[id]
		reg.mu.Unlock()

		if !exists {
			return id
		}
	}
}
