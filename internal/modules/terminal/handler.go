package terminal

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler exposes terminal discovery and registry HTTP endpoints.
type Handler struct {
	registry   *Registry
	discoverer *Discoverer
}

func NewHandler(registry *Registry, discoverer *Discoverer) *Handler {
	return &Handler{registry: registry, discoverer: discoverer}
}

func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/api/v1/terminals", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/discover", h.discover)
		r.Post("/{id}/verify", h.verify)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, h.registry.List())
}

func (h *Handler) discover(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	terminals, err := h.discoverer.Discover(r.Context(), force)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, ErrInvalidRange) {
			code = http.StatusBadRequest
		}
		respond(w, code, map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, terminals)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.registry.Get(id)
	if err != nil {
		respond(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	ok := h.discoverer.VerifyConnection(r.Context(), t)
	respond(w, http.StatusOK, map[string]bool{"connected": ok})
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
