package triage

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReportRenderer turns a finished or in-progress session into a PDF.
type ReportRenderer interface {
	RenderTriage(turn *Turn) ([]byte, error)
}

type Handler struct {
	svc    Service
	report ReportRenderer
	log    *zap.Logger
}

func NewHandler(svc Service, report ReportRenderer, log *zap.Logger) *Handler {
	return &Handler{svc: svc, report: report, log: log}
}

type StartRequest struct {
	Symptom string          `json:"symptom"`
	Age     json.RawMessage `json:"age"`
	Gender  string          `json:"gender"`
	State   string          `json:"state"`
	UserID  string          `json:"user_id"`
}

type AnswerRequest struct {
	QuestionID int64  `json:"question_id"`
	Answer     string `json:"answer"`
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	age, err := ParseAge(string(req.Age))
	if err != nil {
		h.writeError(w, err)
		return
	}
	in := Intake{Symptom: req.Symptom, Age: age, Gender: req.Gender, State: req.State}
	if uid, err := uuid.Parse(req.UserID); err == nil {
		in.UserID = &uid
	}

	turn, err := h.svc.Start(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, turn)
}

func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	turn, err := h.svc.Answer(r.Context(), id, req.QuestionID, req.Answer)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}
	turn, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}
	turn, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	pdf, err := h.report.RenderTriage(turn)
	if err != nil {
		h.log.Error("render triage report", zap.String("session_id", id.String()), zap.Error(err))
		http.Error(w, "Report generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=triage_%s.pdf", id))
	w.Write(pdf)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrQuestionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrSessionClosed), errors.Is(err, ErrQuestionAnswered):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.Error("triage request failed", zap.Error(err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

// ParseAge accepts an empty value, a JSON number or a quoted number.
func ParseAge(raw string) (*int, error) {
	raw = strings.Trim(strings.TrimSpace(raw), `"`)
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	age, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: age must be a whole number", ErrInvalidInput)
	}
	if age < 0 || age > 130 {
		return nil, fmt.Errorf("%w: age out of range", ErrInvalidInput)
	}
	return &age, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/triage", h.Start)
	r.Post("/triage/{id}/answers", h.Answer)
	r.Get("/triage/{id}", h.Get)
	r.Get("/triage/{id}/report.pdf", h.Report)
}
