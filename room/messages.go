package room

import (
	"bytes"
	"strconv"
)

// Message type discriminators on the wire. Mini-game-specific types outside
// this list are relayed to the room without interpretation.
const (
	TypeJoin             = "join"
	TypeHostStartGame    = "hostStartGame"
	TypeFlipCard         = "flipCard"
	TypeHostCloseGame    = "hostCloseGame"
	TypePlayerListUpdate = "playerListUpdate"
	TypeGameStarted      = "gameStarted"
	TypeGameData         = "gameData"
	TypeGameEnded        = "gameEnded"
	TypeScoreUpdate      = "scoreUpdate"
	TypeError            = "error"
	TypeRoomClosed       = "roomClosed"
)

// End-of-game reason strings shown to players.
const (
	ReasonTimeUp        = "Time's up!"
	ReasonAllPairsFound = "All pairs found!"
	ReasonHostClosed    = "Host closed the room"
)

// FlexInt accepts both a JSON number and a quoted numeric string, since the
// browser client is not consistent about which it sends. Anything
// unparseable decodes to zero, which the lifecycle guards then reject with
// an explicit error reply instead of the frame being dropped wholesale.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = 0
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return nil
	}
	*f = FlexInt(n)
	return nil
}

// InboundMessage is the superset of fields the router understands. Unknown
// fields are ignored; unknown types keep their raw frame for relaying.
type InboundMessage struct {
	Type         string  `json:"type"`
	NumPairs     FlexInt `json:"numPairs"`
	GameTime     FlexInt `json:"gameTime"`
	Score        FlexInt `json:"score"`
	MatchedPairs FlexInt `json:"matchedPairs"`
}

// PlayerInfo is one row of a player-list snapshot.
type PlayerInfo struct {
	Nickname string `json:"nickname"`
	IsHost   bool   `json:"isHost"`
	Score    int    `json:"score"`
}

// PlayerListUpdate mirrors the room roster and session flags.
type PlayerListUpdate struct {
	Type              string       `json:"type"`
	Data              []PlayerInfo `json:"data"`
	WaitingForPlayers bool         `json:"waitingForPlayers"`
	GameStarted       bool         `json:"gameStarted"`
	GameEnded         bool         `json:"gameEnded"`
}

type GameStartedMessage struct {
	Type string `json:"type"`
}

// GameDataMessage carries the session parameters, sent strictly after
// gameStarted so clients can gate their UI transition on the latter.
type GameDataMessage struct {
	Type         string `json:"type"`
	NumPairs     int    `json:"numPairs"`
	GameTime     int    `json:"gameTime"`
	TotalPlayers int    `json:"totalPlayers"`
}

type GameEndedMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type ScoreUpdateMessage struct {
	Type     string `json:"type"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type RoomClosedMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
