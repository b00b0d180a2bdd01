package checker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"healthsync/internal/agent"
	"healthsync/internal/doctors"
	"healthsync/internal/recommend"
	"healthsync/internal/triage"
)

const maxMatchedConditions = 3

// Generator is the AI side of the flow, satisfied by *agent.Client.
type Generator interface {
	GenerateQuestions(ctx context.Context, in agent.Intake) ([]agent.QuestionItem, error)
	GenerateDiagnosis(ctx context.Context, in agent.Intake, answers []agent.AnswerItem) (*agent.Diagnosis, error)
}

// Sessions is the slice of triage.Store the flow writes to.
type Sessions interface {
	CreateSession(ctx context.Context, s *triage.SymptomSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*triage.SymptomSession, error)
	UpdateSession(ctx context.Context, s *triage.SymptomSession) error
	FindConditionByName(ctx context.Context, name string) (*triage.Condition, error)
}

type SpecialtyInferer interface {
	Infer(text string) []string
}

type Service interface {
	Start(ctx context.Context, token string, userID *uuid.UUID, in agent.Intake) (*Progress, error)
	Current(ctx context.Context, token string) (*Progress, error)
	Answer(ctx context.Context, token, value string) (*Progress, error)
	Result(ctx context.Context, token string) (*Result, error)
	Reset(ctx context.Context, token string) error
}

// Deps groups the collaborators NewService needs.
type Deps struct {
	Flows     FlowStore
	Sessions  Sessions
	AI        Generator
	Directory doctors.Directory
	Articles  recommend.Recommender
	Keywords  SpecialtyInferer
	Alerter   triage.EmergencyAlerter
}

type service struct {
	Deps
	log *zap.Logger
	now func() time.Time
}

func NewService(deps Deps, log *zap.Logger) Service {
	return &service{Deps: deps, log: log, now: time.Now}
}

func (s *service) Start(ctx context.Context, token string, userID *uuid.UUID, in agent.Intake) (*Progress, error) {
	in.Symptom = strings.TrimSpace(in.Symptom)
	in.Gender = strings.TrimSpace(in.Gender)
	in.State = strings.TrimSpace(in.State)
	if in.Symptom == "" {
		return nil, fmt.Errorf("%w: symptom is required", ErrInvalidInput)
	}
	if in.Age != nil && (*in.Age < 0 || *in.Age > 130) {
		return nil, fmt.Errorf("%w: age out of range", ErrInvalidInput)
	}

	sess := &triage.SymptomSession{
		ID:             uuid.New(),
		UserID:         userID,
		InitialSymptom: in.Symptom,
		Age:            in.Age,
		Gender:         in.Gender,
		State:          in.State,
		Status:         triage.StatusActive,
		CreatedAt:      s.now(),
	}
	flow := &FlowState{
		SessionID: &sess.ID,
		Intake:    in,
		Answers:   []agent.AnswerItem{},
		AICalls:   &AICalls{},
	}

	if check := triage.EmergencyPrecheck(in.Symptom); check.Emergency {
		completed := s.now()
		sess.Status = triage.StatusEmergency
		sess.EmergencyMessage = check.Message
		sess.CompletedAt = &completed
		if err := s.Sessions.CreateSession(ctx, sess); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		flow.Questions = []agent.QuestionItem{}
		flow.Emergency = true
		flow.EmergencyMessage = check.Message
		if err := s.Flows.Save(ctx, token, flow); err != nil {
			return nil, err
		}
		s.log.Warn("emergency pre-check triggered",
			zap.String("session_id", sess.ID.String()),
			zap.String("term", check.Term))
		if s.Alerter != nil {
			if err := s.Alerter.AlertEmergency(ctx, *sess); err != nil {
				s.log.Error("emergency alert failed", zap.String("session_id", sess.ID.String()), zap.Error(err))
			}
		}
		return progressOf(flow), nil
	}

	questions, err := s.AI.GenerateQuestions(ctx, in)
	if err != nil {
		s.log.Warn("question generation failed", zap.Error(err))
		return nil, fmt.Errorf("generate questions: %w", err)
	}
	if err := s.Sessions.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	flow.Questions = questions
	flow.AICalls.Questions = 1
	if err := s.Flows.Save(ctx, token, flow); err != nil {
		return nil, err
	}
	s.log.Info("symptom check started",
		zap.String("session_id", sess.ID.String()),
		zap.Int("questions", len(questions)))
	return progressOf(flow), nil
}

func (s *service) Current(ctx context.Context, token string) (*Progress, error) {
	flow, err := s.Flows.Load(ctx, token)
	if errors.Is(err, ErrNoFlow) {
		return &Progress{}, nil
	}
	if err != nil {
		return nil, err
	}
	return progressOf(flow), nil
}

func progressOf(f *FlowState) *Progress {
	total := len(f.Questions)
	p := &Progress{
		HasSession:       f.HasSession(),
		Completed:        f.completed(),
		SessionID:        f.SessionID,
		Question:         f.current(),
		Step:             f.CurrentIndex + 1,
		Total:            total,
		Emergency:        f.Emergency,
		EmergencyMessage: f.EmergencyMessage,
	}
	if total > 0 {
		p.Progress = int(float64(f.CurrentIndex+1) / float64(total) * 100)
	}
	return p
}

// Answer records value against the current question. Answering a finished
// flow is a no-op.
func (s *service) Answer(ctx context.Context, token, value string) (*Progress, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%w: answer is required", ErrInvalidInput)
	}
	flow, err := s.Flows.Load(ctx, token)
	if err != nil {
		return nil, err
	}
	if !flow.HasSession() {
		return nil, ErrNoFlow
	}
	q := flow.current()
	if q == nil {
		return progressOf(flow), nil
	}

	flow.Answers = append(flow.Answers, agent.AnswerItem{
		QuestionID:   q.ID,
		QuestionText: q.Text,
		Answer:       value,
	})
	flow.CurrentIndex++
	if err := s.Flows.Save(ctx, token, flow); err != nil {
		return nil, err
	}
	return progressOf(flow), nil
}

func (s *service) Result(ctx context.Context, token string) (*Result, error) {
	flow, err := s.Flows.Load(ctx, token)
	if err != nil {
		return nil, err
	}
	if !flow.HasSession() {
		return nil, ErrNoFlow
	}
	if !flow.completed() {
		return nil, ErrIncomplete
	}

	if flow.Diagnosis == nil {
		s.diagnose(ctx, flow)
		if err := s.Flows.Save(ctx, token, flow); err != nil {
			return nil, err
		}
	}

	res := &Result{
		SessionID:           flow.SessionID,
		Diagnosis:           *flow.Diagnosis,
		RiskBanner:          RiskBanner(flow.Diagnosis.Urgency),
		Emergency:           flow.Emergency,
		EmergencyMessage:    flow.EmergencyMessage,
		MatchedConditions:   []triage.Condition{},
		RecommendedDoctors:  []doctors.Doctor{},
		RecommendedArticles: []recommend.Article{},
		AICalls:             *flow.AICalls,
		AIError:             flow.DiagnosisError,
	}
	if res.Diagnosis.Conditions == nil {
		res.Diagnosis.Conditions = []agent.DiagnosisCondition{}
	}

	res.MatchedConditions = s.matchConditions(ctx, flow.Diagnosis.Conditions)
	if docs, err := s.Directory.MatchForSpecializations(ctx, s.specializations(flow, res.MatchedConditions)); err != nil {
		s.log.Warn("doctor recommendations unavailable", zap.Error(err))
	} else if docs != nil {
		res.RecommendedDoctors = docs
	}

	names := make([]string, len(res.MatchedConditions))
	for i, c := range res.MatchedConditions {
		names[i] = c.Name
	}
	if reads, err := s.Articles.Recommend(ctx, names); err != nil {
		s.log.Warn("article recommendations unavailable", zap.Error(err))
	} else if reads != nil {
		res.RecommendedArticles = reads
	}

	if s.finishSession(ctx, flow) {
		res.Collectible = recommend.IssueCollectible()
	}
	return res, nil
}

// diagnose fills flow.Diagnosis. The AI is asked at most once per flow and a
// failure is cached as the placeholder diagnosis.
func (s *service) diagnose(ctx context.Context, flow *FlowState) {
	if flow.Emergency {
		flow.Diagnosis = &agent.Diagnosis{
			Conditions: []agent.DiagnosisCondition{},
			Urgency:    "High",
			Advice:     flow.EmergencyMessage,
		}
		return
	}
	d, err := s.AI.GenerateDiagnosis(ctx, flow.Intake, flow.Answers)
	if err != nil {
		s.log.Warn("diagnosis generation failed", zap.Error(err))
		flow.Diagnosis = &agent.Diagnosis{
			Conditions: []agent.DiagnosisCondition{},
			Urgency:    "Moderate",
			Advice:     unavailableAdvice,
		}
		flow.DiagnosisError = err.Error()
		return
	}
	flow.Diagnosis = d
	flow.AICalls.Diagnosis = 1
}

func (s *service) matchConditions(ctx context.Context, conds []agent.DiagnosisCondition) []triage.Condition {
	out := []triage.Condition{}
	seen := make(map[int64]bool)
	for _, dc := range conds {
		name := strings.TrimSpace(dc.Name)
		if name == "" {
			continue
		}
		c, err := s.Sessions.FindConditionByName(ctx, name)
		if err != nil {
			s.log.Warn("condition lookup failed", zap.String("name", name), zap.Error(err))
			continue
		}
		if c == nil || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, *c)
		if len(out) == maxMatchedConditions {
			break
		}
	}
	return out
}

// specializations prefers the stored conditions, then what the AI suggested,
// then the keyword table over the complaint and condition names.
func (s *service) specializations(flow *FlowState, matched []triage.Condition) []string {
	var out []string
	for _, c := range matched {
		out = append(out, c.Specializations()...)
	}
	if len(out) > 0 {
		return out
	}
	for _, dc := range flow.Diagnosis.Conditions {
		if sp := strings.TrimSpace(dc.Specialization); sp != "" {
			out = append(out, sp)
		}
	}
	if len(out) > 0 || s.Keywords == nil {
		return out
	}
	text := flow.Intake.Symptom
	for _, dc := range flow.Diagnosis.Conditions {
		text += " " + dc.Name
	}
	return s.Keywords.Infer(text)
}

// finishSession closes the backing SymptomSession. It reports whether the
// session exists.
func (s *service) finishSession(ctx context.Context, flow *FlowState) bool {
	if flow.SessionID == nil {
		return false
	}
	sess, err := s.Sessions.GetSession(ctx, *flow.SessionID)
	if err != nil {
		s.log.Warn("session not available for completion",
			zap.String("session_id", flow.SessionID.String()), zap.Error(err))
		return false
	}
	if sess.Status == triage.StatusActive {
		completed := s.now()
		sess.Status = triage.StatusCompleted
		sess.CompletedAt = &completed
		if err := s.Sessions.UpdateSession(ctx, sess); err != nil {
			s.log.Error("failed to complete session", zap.String("session_id", sess.ID.String()), zap.Error(err))
		}
	}
	return true
}

func (s *service) Reset(ctx context.Context, token string) error {
	return s.Flows.Delete(ctx, token)
}
