package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"arena-server/internal/arena"
	"arena-server/internal/mode"
	"arena-server/internal/store"
)

// WalletStore is the slice of the store the REST surface reads directly;
// everything session-shaped goes through the coordinator.
type WalletStore interface {
	GetWallet(ctx context.Context, userID string) (*store.Wallet, error)
	Ping(ctx context.Context) error
}

type ArenaHandlers struct {
	coord   *arena.Coordinator
	modes   *mode.Registry
	wallets WalletStore
}

func NewArenaHandlers(coord *arena.Coordinator, modes *mode.Registry, wallets WalletStore) *ArenaHandlers {
	return &ArenaHandlers{coord: coord, modes: modes, wallets: wallets}
}

func (h *ArenaHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.wallets.Ping(r.Context()); err != nil {
			WriteHTTPError(w, http.StatusServiceUnavailable, "store_unavailable")
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

func (h *ArenaHandlers) Modes() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"modes": h.modes.IDs()})
	}
}

func (h *ArenaHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := h.coord.ListOpen(r.Context())
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, map[string]any{"sessions": list})
	}
}

type createRequest struct {
	UserID     string          `json:"user_id"`
	UserName   string          `json:"user_name"`
	Mode       string          `json:"mode"`
	ScenarioID string          `json:"scenario_id,omitempty"`
	Name       string          `json:"name,omitempty"`
	Capacity   int             `json:"capacity,omitempty"`
	Settings   json.RawMessage `json:"settings,omitempty"`
}

func (h *ArenaHandlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Mode == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		sessionsCreatedTotal.Add(1)
		snap, err := h.coord.Create(r.Context(), arena.CreateRequest{
			Name:       req.Name,
			Mode:       req.Mode,
			ScenarioID: req.ScenarioID,
			HostUserID: req.UserID,
			HostName:   req.UserName,
			Capacity:   req.Capacity,
			Settings:   req.Settings,
		})
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(snap)
	}
}

func (h *ArenaHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := h.coord.Snapshot(r.Context(), chi.URLParam(r, "session_id"))
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		writeJSON(w, snap)
	}
}

type memberRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
}

func (h *ArenaHandlers) Join() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req memberRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		name := req.Name
		if name == "" {
			name = req.UserID
		}
		snap, err := h.coord.Join(r.Context(), chi.URLParam(r, "session_id"), req.UserID, name)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		writeJSON(w, snap)
	}
}

func (h *ArenaHandlers) Leave() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req memberRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if err := h.coord.Leave(r.Context(), chi.URLParam(r, "session_id"), req.UserID); err != nil {
			WriteDomainError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"ok": true})
	}
}

type readyRequest struct {
	UserID string `json:"user_id"`
	Ready  bool   `json:"ready"`
}

func (h *ArenaHandlers) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req readyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if err := h.coord.SetReady(r.Context(), chi.URLParam(r, "session_id"), req.UserID, req.Ready); err != nil {
			WriteDomainError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"ok": true})
	}
}

func (h *ArenaHandlers) Start() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req memberRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		snap, err := h.coord.Start(r.Context(), chi.URLParam(r, "session_id"), req.UserID)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		writeJSON(w, snap)
	}
}

type kickRequest struct {
	UserID string `json:"user_id"`
	Target string `json:"target"`
}

func (h *ArenaHandlers) Kick() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req kickRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Target == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if err := h.coord.Kick(r.Context(), chi.URLParam(r, "session_id"), req.UserID, req.Target); err != nil {
			WriteDomainError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"ok": true})
	}
}

type settingsRequest struct {
	UserID   string          `json:"user_id"`
	Settings json.RawMessage `json:"settings"`
}

func (h *ArenaHandlers) Settings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req settingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if err := h.coord.UpdateSettings(r.Context(), chi.URLParam(r, "session_id"), req.UserID, req.Settings); err != nil {
			WriteDomainError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"ok": true})
	}
}

type actionRequest struct {
	UserID  string          `json:"user_id"`
	Payload json.RawMessage `json:"payload"`
}

func (h *ArenaHandlers) Action() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req actionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || len(req.Payload) == 0 {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		actionsTotal.Add(1)
		res, err := h.coord.SubmitAction(r.Context(), chi.URLParam(r, "session_id"), req.UserID, req.Payload)
		if err != nil {
			actionsRejectedTotal.Add(1)
			WriteDomainError(w, err)
			return
		}
		writeJSON(w, res)
	}
}

type flagRequest struct {
	UserID string `json:"user_id"`
	Flag   string `json:"flag"`
}

// Flag is a convenience for final-flag submissions; it rides the normal
// action path so the mode engine owns validation and scoring.
func (h *ArenaHandlers) Flag() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req flagRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Flag == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		payload, _ := json.Marshal(map[string]string{"op": "flag", "flag": req.Flag})
		actionsTotal.Add(1)
		res, err := h.coord.SubmitAction(r.Context(), chi.URLParam(r, "session_id"), req.UserID, payload)
		if err != nil {
			actionsRejectedTotal.Add(1)
			WriteDomainError(w, err)
			return
		}
		writeJSON(w, res)
	}
}

func (h *ArenaHandlers) End() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req memberRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if err := h.coord.ForceEnd(r.Context(), chi.URLParam(r, "session_id"), req.UserID); err != nil {
			WriteDomainError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"ok": true})
	}
}

// Wallet returns accumulated XP and coins; a user with no grants yet reads
// as a zero wallet rather than 404.
func (h *ArenaHandlers) Wallet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "user_id")
		wallet, err := h.wallets.GetWallet(r.Context(), userID)
		if errors.Is(err, store.ErrNotFound) {
			wallet = &store.Wallet{UserID: userID}
		} else if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, wallet)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
