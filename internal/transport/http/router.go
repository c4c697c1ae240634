package httptransport

import (
	"expvar"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"arena-server/internal/arena"
	"arena-server/internal/mode"
	"arena-server/internal/ws"
)

func NewRouter(coord *arena.Coordinator, modes *mode.Registry, wallets WalletStore, hub *ws.Hub) *chi.Mux {
	h := NewArenaHandlers(coord, modes, wallets)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", h.Health())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/modes", h.Modes())
		r.Get("/arenas", h.List())
		r.Post("/arenas", h.Create())
		r.Get("/arenas/{session_id}", h.Get())
		r.Post("/arenas/{session_id}/join", h.Join())
		r.Post("/arenas/{session_id}/leave", h.Leave())
		r.Post("/arenas/{session_id}/ready", h.Ready())
		r.Post("/arenas/{session_id}/start", h.Start())
		r.Post("/arenas/{session_id}/kick", h.Kick())
		r.Post("/arenas/{session_id}/settings", h.Settings())
		r.Post("/arenas/{session_id}/actions", h.Action())
		r.Post("/arenas/{session_id}/flag", h.Flag())
		r.Post("/arenas/{session_id}/end", h.End())
		r.Get("/users/{user_id}/wallet", h.Wallet())

		r.Get("/debug/vars", expvar.Handler().ServeHTTP)
	})

	if hub != nil {
		r.Get("/ws", http.HandlerFunc(hub.HandleWS).ServeHTTP)
	}
	return r
}
