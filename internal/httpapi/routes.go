package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/birdr-pro/quizwire/internal/hub"
	"github.com/birdr-pro/quizwire/internal/ws"
)

func SetupRoutes(h *hub.Hub, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Public routes
	r.Post("/api/games", CreateGame(h, log))
	r.Post("/api/games/{token}/players", JoinGame(h, log))
	r.Get("/api/games/{token}", GetGame(h))
	r.Get("/healthz", Healthz)
	r.Get("/mpg/{token}", ws.Handler(h, log))
	return r
}
