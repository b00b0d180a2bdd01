package checker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"healthsync/internal/agent"
)

type stubService struct {
	token  string
	intake agent.Intake
	userID *uuid.UUID
	answer string
	reset  bool
	err    error
}

func (s *stubService) Start(_ context.Context, token string, userID *uuid.UUID, in agent.Intake) (*Progress, error) {
	s.token, s.userID, s.intake = token, userID, in
	return &Progress{HasSession: true, Step: 1, Total: 6}, s.err
}

func (s *stubService) Current(_ context.Context, token string) (*Progress, error) {
	s.token = token
	return &Progress{HasSession: true}, s.err
}

func (s *stubService) Answer(_ context.Context, token, value string) (*Progress, error) {
	s.token, s.answer = token, value
	return &Progress{HasSession: true, Step: 2}, s.err
}

func (s *stubService) Result(_ context.Context, token string) (*Result, error) {
	s.token = token
	if s.err != nil {
		return nil, s.err
	}
	return &Result{RiskBanner: bannerLow}, nil
}

func (s *stubService) Reset(_ context.Context, token string) error {
	s.token, s.reset = token, true
	return s.err
}

func do(t *testing.T, svc Service, method, target, body string, mod func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	RegisterRoutes(r, NewHandler(svc, time.Hour, zap.NewNop()))
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if mod != nil {
		mod(req)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_StartIssuesToken(t *testing.T) {
	svc := &stubService{}
	uid := uuid.New()
	rec := do(t, svc, http.MethodPost, "/checker/start",
		`{"symptom":"cough","age":"41","gender":"female","user_id":"`+uid.String()+`"}`, nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	token := rec.Header().Get(TokenHeader)
	require.NotEmpty(t, token)
	assert.Equal(t, token, svc.token)
	assert.Equal(t, 41, *svc.intake.Age)
	assert.Equal(t, uid, *svc.userID)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, token, cookies[0].Value)
	assert.Equal(t, 3600, cookies[0].MaxAge)
}

func TestHandler_StartKeepsHeaderToken(t *testing.T) {
	svc := &stubService{}
	rec := do(t, svc, http.MethodPost, "/checker/start", `{"symptom":"cough"}`, func(r *http.Request) {
		r.Header.Set(TokenHeader, "client-token")
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "client-token", svc.token)
	assert.Nil(t, svc.userID)
}

func TestHandler_StartErrors(t *testing.T) {
	rec := do(t, &stubService{}, http.MethodPost, "/checker/start", `{"symptom":"cough","age":"old"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, &stubService{}, http.MethodPost, "/checker/start", `{`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc := &stubService{err: &agent.GenerationError{Kind: agent.KindQuota, Reason: "Gemini quota exceeded"}}
	rec = do(t, svc, http.MethodPost, "/checker/start", `{"symptom":"cough"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "Gemini quota exceeded")
}

func TestHandler_AnswerUsesCookie(t *testing.T) {
	svc := &stubService{}
	rec := do(t, svc, http.MethodPost, "/checker/answer", `{"answer":"Yes"}`, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: tokenCookie, Value: "cookie-token"})
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cookie-token", svc.token)
	assert.Equal(t, "Yes", svc.answer)
}

func TestHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{ErrNoFlow, http.StatusNotFound},
		{ErrIncomplete, http.StatusConflict},
		{ErrInvalidInput, http.StatusBadRequest},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := do(t, &stubService{err: tt.err}, http.MethodGet, "/checker/result", "", func(r *http.Request) {
			r.Header.Set(TokenHeader, "tok")
		})
		assert.Equal(t, tt.code, rec.Code, tt.err.Error())
	}
}

func TestHandler_QuestionWithoutToken(t *testing.T) {
	svc := &stubService{}
	rec := do(t, svc, http.MethodGet, "/checker/question", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"has_session":false`)
	assert.Empty(t, svc.token)
}

func TestHandler_Reset(t *testing.T) {
	svc := &stubService{}
	rec := do(t, svc, http.MethodPost, "/checker/reset", "", func(r *http.Request) {
		r.Header.Set(TokenHeader, "tok")
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, svc.reset)
	assert.Equal(t, "tok", svc.token)
}
