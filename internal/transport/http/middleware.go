package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"

	"arena-server/internal/arena"
	"arena-server/internal/content"
	"arena-server/internal/logging"
	"arena-server/internal/mode"
	"arena-server/internal/store"
)

func APILogMiddleware() func(http.Handler) http.Handler {
	return httplog.RequestLogger(
		slog.New(slog.NewJSONHandler(logging.Writer(), &slog.HandlerOptions{})),
		&httplog.Options{
			Level:              slog.LevelInfo,
			Schema:             httplog.Schema{ResponseStatus: "status", ResponseDuration: "duration_ms"},
			LogRequestBody:     func(*http.Request) bool { return false },
			LogResponseBody:    func(*http.Request) bool { return false },
			LogRequestHeaders:  []string{},
			LogResponseHeaders: []string{},
			LogExtraAttrs: func(req *http.Request, _ string, _ int) []slog.Attr {
				rc := chi.RouteContext(req.Context())
				route := req.URL.Path
				if rc != nil && rc.RoutePattern() != "" {
					route = rc.RoutePattern()
				}
				return []slog.Attr{
					slog.String("request_id", chimw.GetReqID(req.Context())),
					slog.String("method", req.Method),
					slog.String("route", route),
					slog.String("path", req.URL.Path),
				}
			},
		},
	)
}

func WriteHTTPError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": code})
}

// WriteDomainError translates coordinator and store rejections into HTTP
// responses carrying the rejection code verbatim.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, content.ErrScenarioNotFound):
		WriteHTTPError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, arena.ErrNotHost), errors.Is(err, arena.ErrKickHost):
		WriteHTTPError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrSessionFull),
		errors.Is(err, store.ErrAlreadyJoined),
		errors.Is(err, store.ErrNotAccepting),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, arena.ErrNotWaiting),
		errors.Is(err, arena.ErrNotStarted),
		errors.Is(err, arena.ErrSessionEnded),
		errors.Is(err, arena.ErrNotEnoughPlayers),
		errors.Is(err, arena.ErrNotAllReady),
		errors.Is(err, arena.ErrKickAfterStart):
		WriteHTTPError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrNotParticipant), errors.Is(err, mode.ErrUnknownMode):
		WriteHTTPError(w, http.StatusBadRequest, err.Error())
	case mode.Rejected(err):
		WriteHTTPError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
	}
}
