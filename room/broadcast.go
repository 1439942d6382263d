package room

import "sort"

// recipientsLocked returns everyone currently registered, host first.
// Assumes r.mu is already held.
func (r *Room) recipientsLocked() []*Client {
	out := make([]*Client, 0, len(r.conns)+1)
	if r.host != nil {
		out = append(out, r.host)
	}
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Broadcast fans v out to the host and every player. Delivery is
// best-effort: a failed send is logged and skipped, never retried, and
// never aborts delivery to the remaining sockets.
func (r *Room) Broadcast(v any) {
	r.mu.Lock()
	recipients := r.recipientsLocked()
	r.mu.Unlock()

	r.sendAll(recipients, v)
}

func (r *Room) sendAll(recipients []*Client, v any) {
	for _, c := range recipients {
		if err := c.Send(v); err != nil {
			r.logf("ROOMS: Send to %q in %s failed: %v", c.Nickname, r.ID, err)
		}
	}
}

// PlayerList builds a roster snapshot, host first, players sorted by
// nickname. Also served by the read-only HTTP mirror.
func (r *Room) PlayerList() PlayerListUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.playerListLocked()
}

func (r *Room) playerListLocked() PlayerListUpdate {
	players := make([]PlayerInfo, 0, len(r.conns)+1)
	if r.host != nil {
		players = append(players, PlayerInfo{
			Nickname: r.host.Nickname,
			IsHost:   true,
			Score:    r.host.Score(),
		})
	}

	rest := make([]PlayerInfo, 0, len(r.conns))
	for c := range r.conns {
		rest = append(rest, PlayerInfo{
			Nickname: c.Nickname,
			Score:    c.Score(),
		})
	}
	sort.Slice(rest, func(i, j int) bool {
		return rest[i].Nickname < rest[j].Nickname
	})
	players = append(players, rest...)

	return PlayerListUpdate{
		Type:              TypePlayerListUpdate,
		Data:              players,
		WaitingForPlayers: r.state == StateWaiting,
		GameStarted:       r.state != StateWaiting,
		GameEnded:         r.state == StateEnded,
	}
}

// BroadcastPlayerList pushes a fresh roster snapshot to everyone.
func (r *Room) BroadcastPlayerList() {
	r.mu.Lock()
	update := r.playerListLocked()
	recipients := r.recipientsLocked()
	r.mu.Unlock()

	r.sendAll(recipients, update)
}
