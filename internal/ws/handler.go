package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/birdr-pro/quizwire/internal/game"
	"github.com/birdr-pro/quizwire/internal/hub"
	"github.com/birdr-pro/quizwire/internal/protocol"
)

// Handler accepts one quiz socket per request at /mpg/{token}. Frames from
// the room arrive pre-encoded on the outbox; inbound frames are decoded
// into intents and forwarded to the room's inbox.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")
		if token == "" {
			http.Error(w, "missing game token", http.StatusBadRequest)
			return
		}

		reply := make(chan *game.Room, 1)
		h.Inbox() <- hub.GetRoom{Token: token, Reply: reply}
		rm := <-reply
		if rm == nil {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true, // dev server; clients are not browsers
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan []byte, 16)
		clientID := uuid.NewString()

		rm.Inbox() <- game.Attach{ClientID: clientID, Outbox: out}
		defer func() { rm.Inbox() <- game.Detach{ClientID: clientID} }()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for frame := range out {
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, frame)
				cancel()
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				// Treat clean close/going-away as normal:
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				// Otherwise, just exit (game.Detach in defer):
				return
			}

			intent, err := protocol.DecodeIntent(data)
			if err != nil {
				log.Warn("dropping bad client frame", zap.Error(err))
				continue
			}
			rm.Inbox() <- game.FromClient{ClientID: clientID, Intent: intent}
		}
	}
}
