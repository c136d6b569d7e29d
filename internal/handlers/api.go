package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"simguard/internal/commands"
)

// SubscriberCounter reports the number of live subscribers.
type SubscriberCounter interface {
	Len() int
}

// APIHandler serves the JSON command and query endpoints.
type APIHandler struct {
	cmds    *commands.Handler
	bus     SubscriberCounter
	trigger func()
	log     *slog.Logger
}

// NewAPIHandler builds the JSON API. trigger wakes the background generator;
// nil means the generator is disabled.
func NewAPIHandler(cmds *commands.Handler, bus SubscriberCounter, trigger func(), log *slog.Logger) *APIHandler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &APIHandler{cmds: cmds, bus: bus, trigger: trigger, log: log}
}

func (h *APIHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sims", h.sims)
	r.Post("/action", h.action)
	r.Post("/recovery", h.recovery)
	r.Get("/risk/{simID}", h.risk)
	r.Post("/simulate", h.simulate)
	r.Get("/healthz", h.healthz)
}

func (h *APIHandler) sims(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cmds.Store().Snapshot())
}

type actionRequest struct {
	SimID  string `json:"sim_id"`
	Action string `json:"action"`
}

func (h *APIHandler) action(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.cmds.Action(r.Context(), req.SimID, req.Action)
	if err != nil {
		h.writeCommandError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type recoveryRequest struct {
	SimID string `json:"sim_id"`
	Step  string `json:"step"`
}

func (h *APIHandler) recovery(w http.ResponseWriter, r *http.Request) {
	var req recoveryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.cmds.Recovery(r.Context(), req.SimID, commands.Step(req.Step)); err != nil {
		h.writeCommandError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *APIHandler) risk(w http.ResponseWriter, r *http.Request) {
	simID := chi.URLParam(r, "simID")
	tier, err := h.cmds.RiskScore(r.Context(), simID)
	if err != nil {
		h.writeCommandError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sim_id": simID, "risk": string(tier)})
}

// simulate either runs one branch immediately (?kind=swap|registration) or
// wakes the background generator.
func (h *APIHandler) simulate(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("kind") {
	case "swap":
		res, err := h.cmds.SimulateSwap(r.Context())
		if err != nil {
			h.writeCommandError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sim": res.Sim, "auto_locked": res.AutoLocked})
	case "registration":
		res, err := h.cmds.SimulateRegistration(r.Context())
		if err != nil {
			h.writeCommandError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"registered": res.Registered, "sim": res.Sim})
	case "":
		if h.trigger == nil {
			writeError(w, http.StatusServiceUnavailable, "generator disabled")
			return
		}
		h.trigger()
		writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
	default:
		writeError(w, http.StatusBadRequest, "unknown kind")
	}
}

func (h *APIHandler) healthz(w http.ResponseWriter, r *http.Request) {
	n := 0
	if h.bus != nil {
		n = h.bus.Len()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "subscribers": n})
}

func (h *APIHandler) writeCommandError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, commands.ErrNotFound):
		writeError(w, http.StatusNotFound, commands.ErrNotFound.Error())
	case errors.Is(err, commands.ErrUnknownAction):
		writeError(w, http.StatusBadRequest, commands.ErrUnknownAction.Error())
	case errors.Is(err, commands.ErrUnknownStep):
		writeError(w, http.StatusBadRequest, commands.ErrUnknownStep.Error())
	default:
		h.log.ErrorContext(r.Context(), "command failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
