package room

import "encoding/json"

// Router dispatches inbound frames to the session lifecycle and scoring
// handlers. It performs no transport I/O of its own beyond replies and
// broadcasts delegated through the room.
type Router struct {
	registry *Registry
	logf     Logf
}

func NewRouter(registry *Registry, logf Logf) *Router {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Router{
		registry: registry,
		logf:     logf,
	}
}

// Route handles one inbound frame from client. Malformed JSON never takes
// the connection down: the frame is logged and dropped. Frames carrying a
// type the router does not know are relayed to the room untouched, so
// mini-game-specific messages pass through the coordination layer.
func (rt *Router) Route(r *Room, client *Client, frame []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		rt.logf("WS: Dropping malformed frame from %q in %s: %v", client.Nickname, r.ID, err)
		return
	}
	if msg.Type == "" {
		rt.logf("WS: Dropping frame without type from %q in %s", client.Nickname, r.ID)
		return
	}

	switch msg.Type {
	case TypeJoin:
		r.BroadcastPlayerList()

	case TypeHostStartGame:
		if err := r.StartGame(client, int(msg.NumPairs), int(msg.GameTime)); err != nil {
			rt.logf("WS: Rejected hostStartGame from %q in %s: %v", client.Nickname, r.ID, err)
			client.SendError(err.Error())
		}

	case TypeFlipCard:
		r.ReportScore(client, int(msg.Score), int(msg.MatchedPairs))

	case TypeHostCloseGame:
		rt.closeRoom(r, client)

	default:
		// Opaque mini-game traffic, forwarded as-is.
		r.Broadcast(json.RawMessage(frame))
	}
}

// closeRoom tears the room down on the host's request: end any running
// game, tell everyone, drop the room from the registry.
func (rt *Router) closeRoom(r *Room, client *Client) {
	if client != r.Host() {
		rt.logf("WS: Rejected hostCloseGame from %q in %s", client.Nickname, r.ID)
		client.SendError(ErrNotHost.Error())
		return
	}

	r.EndGame(ReasonHostClosed)
	r.Broadcast(RoomClosedMessage{
		Type:    TypeRoomClosed,
		Message: ReasonHostClosed,
	})
	rt.registry.Remove(r.ID)
}
