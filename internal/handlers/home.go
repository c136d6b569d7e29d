package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"simguard/internal/commands"
	"simguard/internal/registry"
	"simguard/internal/viewmodel"
	"simguard/views/pages"
)

type HomeHandler struct {
	store *registry.Store
}

func NewHomeHandler(store *registry.Store) *HomeHandler {
	return &HomeHandler{store: store}
}

func (h *HomeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.home)
}

func (h *HomeHandler) home(w http.ResponseWriter, r *http.Request) {
	steps := make([]string, 0, len(commands.Steps))
	for _, s := range commands.Steps {
		steps = append(steps, string(s))
	}
	render(w, r, pages.Dashboard(viewmodel.NewDashboard(h.store.Snapshot(), steps)))
}
