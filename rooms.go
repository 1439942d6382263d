package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/DukeHsieh/gogokoov1-sub000/room"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// serveWS upgrades a connection identified by ?roomId=&nickname=&isHost=
// and pumps its frames through the message router until the socket closes.
func serveWS(cfg *Config, registry *room.Registry, router *room.Router) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		query := r.URL.Query()
		roomID := query.Get("roomId")
		nickname := query.Get("nickname")
		isHost := query.Get("isHost") == "true"

		if roomID == "" || nickname == "" {
			http.Error(w, "roomId and nickname are required", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "WS: Upgrade failed for %s: %v", realIP(r), err)
			return
		}

		rm := registry.GetOrCreate(roomID)

		client, err := rm.Attach(nickname, isHost, conn)
		if err != nil {
			_ = conn.WriteJSON(room.ErrorMessage{Type: room.TypeError, Message: err.Error()})
			// Normal closure: the refusal is final, and anything else would
			// send well-behaved clients into a pointless reconnect loop.
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, err.Error()), deadline)
			_ = conn.Close()
			return
		}

		rm.BroadcastPlayerList()

		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				break
			}
			router.Route(rm, client, frame)
		}

		rm.Detach(client, conn)
		_ = conn.Close()
	}
}

// serveNewRoomCode mints an unused room code so a host UI can create a
// room before opening its socket.
func serveNewRoomCode(cfg *Config, registry *room.Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		code := registry.NewRoomCode()
		logf(cfg, "ROOMS: Minted room code %s for %s", code, realIP(r))

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		securityHeaders(cfg, w)

		_ = json.NewEncoder(w).Encode(map[string]string{"roomId": code})
	}
}

// servePlayerList is a read-only convenience mirror of the playerListUpdate
// push; the WebSocket layer remains authoritative.
func servePlayerList(cfg *Config, registry *room.Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		rm := registry.Get(ps.ByName("roomId"))
		if rm == nil {
			http.Error(w, "no such room", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		securityHeaders(cfg, w)

		_ = json.NewEncoder(w).Encode(rm.PlayerList())
	}
}

// qrHandler generates a PNG QR code for the shareable room URL.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roomID := ps.ByName("roomId")
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /rooms/:roomId/qr; strip the trailing "/qr" for the join URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// registerGameRooms wires the coordination endpoints:
//   - /ws                      → WebSocket, joined via query parameters
//   - /newroom                 → mint an unused 6-digit room code
//   - /rooms/:roomId/players   → read-only roster mirror
//   - /rooms/:roomId/qr        → PNG QR code for the room's share link
func registerGameRooms(cfg *Config, mux *httprouter.Router) {
	roomLogf := func(format string, args ...any) {
		logf(cfg, format, args...)
	}

	registry := room.NewRegistry(roomLogf)
	router := room.NewRouter(registry, roomLogf)

	mux.GET(cfg.prefix+"/ws", serveWS(cfg, registry, router))
	mux.GET(cfg.prefix+"/newroom", serveNewRoomCode(cfg, registry))
	mux.GET(cfg.prefix+"/rooms/:roomId/players", servePlayerList(cfg, registry))
	mux.GET(cfg.prefix+"/rooms/:roomId/qr", qrHandler)
}
