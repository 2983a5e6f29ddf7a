package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/birdr-pro/quizwire/internal/game"
	"github.com/birdr-pro/quizwire/internal/hub"
	"github.com/birdr-pro/quizwire/internal/protocol"
)

const defaultLength = 10

func GenerateToken() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	token := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		token[i] = charset[num.Int64()]
	}
	return string(token), nil
}

// CreateGame creates a room plus its host player and hands both back; the
// host presents the returned player token on the socket.
func CreateGame(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			HostName string        `json:"host_name"`
			Length   int           `json:"length"`
			Mode     protocol.Mode `json:"mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		if req.HostName == "" {
			http.Error(w, "host_name required", http.StatusBadRequest)
			return
		}
		if req.Length <= 0 {
			req.Length = defaultLength
		}
		if req.Mode == "" {
			req.Mode = protocol.ModeClassic
		}

		var token string
		for {
			t, err := GenerateToken()
			if err != nil {
				http.Error(w, "failed to generate token", http.StatusInternalServerError)
				return
			}
			reply := make(chan *game.Room, 1)
			h.Inbox() <- hub.GetRoom{Token: t, Reply: reply}
			if <-reply == nil {
				token = t
				break
			}
			log.Info("collision on game token, regenerating")
		}

		g := protocol.Game{
			Token:       token,
			Mode:        req.Mode,
			Multiplayer: true,
			Length:      req.Length,
		}
		reply := make(chan *game.Room, 1)
		h.Inbox() <- hub.CreateRoom{Game: g, Reply: reply}
		rm := <-reply
		if rm == nil {
			http.Error(w, "failed to create game", http.StatusInternalServerError)
			return
		}

		host := protocol.Player{
			Token:  uuid.NewString(),
			Name:   req.HostName,
			IsHost: true,
		}
		added := make(chan bool, 1)
		rm.Inbox() <- game.AddPlayer{Player: host, Reply: added}
		if !<-added {
			http.Error(w, "failed to register host", http.StatusInternalServerError)
			return
		}

		// Respond with the room's view of the game so the host field matches
		// what GetGame and game_updated carry.
		created := make(chan protocol.Game, 1)
		rm.Inbox() <- game.GetGame{Reply: created}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			Game   protocol.Game   `json:"game"`
			Player protocol.Player `json:"player"`
		}{Game: <-created, Player: host})
	}
}

// JoinGame registers a new participant with an existing room.
func JoinGame(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}

		rm := lookupRoom(h, chi.URLParam(r, "token"))
		if rm == nil {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}

		p := protocol.Player{Token: uuid.NewString(), Name: req.Name}
		added := make(chan bool, 1)
		rm.Inbox() <- game.AddPlayer{Player: p, Reply: added}
		if !<-added {
			http.Error(w, "could not join game", http.StatusConflict)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			Player protocol.Player `json:"player"`
		}{Player: p})
	}
}

// GetGame serves the game object by token; clients use it to seed their
// session before the socket delivers anything.
func GetGame(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm := lookupRoom(h, chi.URLParam(r, "token"))
		if rm == nil {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}
		reply := make(chan protocol.Game, 1)
		rm.Inbox() <- game.GetGame{Reply: reply}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(<-reply)
	}
}

func lookupRoom(h *hub.Hub, token string) *game.Room {
	if token == "" {
		return nil
	}
	reply := make(chan *game.Room, 1)
	h.Inbox() <- hub.GetRoom{Token: token, Reply: reply}
	return <-reply
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
