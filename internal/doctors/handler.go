package doctors

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Finder is the live lookup side, satisfied by *Discoverer.
type Finder interface {
	Nearby(ctx context.Context, location, specialization string, limit int) []Doctor
	SuggestLocations(ctx context.Context, query string, limit int) []string
}

type Handler struct {
	directory Directory
	finder    Finder
	log       *zap.Logger
}

func NewHandler(directory Directory, finder Finder, log *zap.Logger) *Handler {
	return &Handler{directory: directory, finder: finder, log: log}
}

type listResponse struct {
	Doctors []Doctor `json:"doctors"`
}

type suggestResponse struct {
	Suggestions []string `json:"suggestions"`
}

// List serves directory matches for ?specialization=a,b.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	spec := r.URL.Query().Get("specialization")
	if strings.TrimSpace(spec) == "" {
		http.Error(w, "specialization is required", http.StatusBadRequest)
		return
	}
	docs, err := h.directory.MatchForSpecializations(r.Context(), []string{spec})
	if err != nil {
		h.log.Error("doctor directory lookup failed", zap.String("specialization", spec), zap.Error(err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Doctors: orEmpty(docs)})
}

func (h *Handler) Nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	location := strings.TrimSpace(q.Get("location"))
	if location == "" {
		http.Error(w, "location is required", http.StatusBadRequest)
		return
	}
	docs := h.finder.Nearby(r.Context(), location, q.Get("specialization"), queryInt(q.Get("limit"), defaultNearbyLimit))
	writeJSON(w, http.StatusOK, listResponse{Doctors: orEmpty(docs)})
}

func (h *Handler) SuggestLocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out := h.finder.SuggestLocations(r.Context(), q.Get("q"), queryInt(q.Get("limit"), 8))
	if out == nil {
		out = []string{}
	}
	writeJSON(w, http.StatusOK, suggestResponse{Suggestions: out})
}

func queryInt(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func orEmpty(d []Doctor) []Doctor {
	if d == nil {
		return []Doctor{}
	}
	return d
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/doctors", h.List)
	r.Get("/doctors/nearby", h.Nearby)
	r.Get("/locations/suggest", h.SuggestLocations)
}
