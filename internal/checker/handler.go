package checker

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"healthsync/internal/agent"
	"healthsync/internal/triage"
)

const (
	TokenHeader = "X-Flow-Token"
	tokenCookie = "flow_token"
)

type Handler struct {
	svc       Service
	cookieTTL time.Duration
	log       *zap.Logger
}

func NewHandler(svc Service, cookieTTL time.Duration, log *zap.Logger) *Handler {
	return &Handler{svc: svc, cookieTTL: cookieTTL, log: log}
}

type StartRequest struct {
	Symptom string          `json:"symptom"`
	Age     json.RawMessage `json:"age"`
	Gender  string          `json:"gender"`
	State   string          `json:"state"`
	UserID  string          `json:"user_id"`
}

type AnswerRequest struct {
	Answer string `json:"answer"`
}

func flowToken(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get(TokenHeader)); t != "" {
		return t
	}
	if c, err := r.Cookie(tokenCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	age, err := triage.ParseAge(string(req.Age))
	if err != nil {
		h.writeError(w, err)
		return
	}
	var userID *uuid.UUID
	if uid, err := uuid.Parse(req.UserID); err == nil {
		userID = &uid
	}

	token := flowToken(r)
	if token == "" {
		token = uuid.NewString()
	}
	p, err := h.svc.Start(r.Context(), token, userID, agent.Intake{
		Symptom: req.Symptom,
		Age:     age,
		Gender:  req.Gender,
		State:   req.State,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set(TokenHeader, token)
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookieTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) Question(w http.ResponseWriter, r *http.Request) {
	token := flowToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, &Progress{})
		return
	}
	p, err := h.svc.Current(r.Context(), token)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	p, err := h.svc.Answer(r.Context(), flowToken(r), req.Answer)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Result(r.Context(), flowToken(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if token := flowToken(r); token != "" {
		if err := h.svc.Reset(r.Context(), token); err != nil {
			h.writeError(w, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{Name: tokenCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var genErr *agent.GenerationError
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, triage.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNoFlow):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrIncomplete):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &genErr):
		h.log.Warn("symptom check unavailable", zap.String("kind", string(genErr.Kind)), zap.Error(err))
		http.Error(w, genErr.Reason, http.StatusServiceUnavailable)
	default:
		h.log.Error("symptom check request failed", zap.Error(err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/checker/start", h.Start)
	r.Get("/checker/question", h.Question)
	r.Post("/checker/answer", h.Answer)
	r.Get("/checker/result", h.Result)
	r.Post("/checker/reset", h.Reset)
}
