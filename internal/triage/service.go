package triage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EmergencyAlerter notifies clinicians when a session escalates.
type EmergencyAlerter interface {
	AlertEmergency(ctx context.Context, sess SymptomSession) error
}

// Turn is the engine's reply to one request.
type Turn struct {
	Session   SymptomSession      `json:"session"`
	Question  *DiagnosticQuestion `json:"question,omitempty"`
	Ranking   []RankedCondition   `json:"ranking"`
	Answers   []SessionAnswer     `json:"answers,omitempty"`
	Done      bool                `json:"done"`
	Emergency bool                `json:"emergency"`
	Message   string              `json:"message,omitempty"`
}

type Service interface {
	Start(ctx context.Context, in Intake) (*Turn, error)
	Answer(ctx context.Context, sessionID uuid.UUID, questionID int64, value string) (*Turn, error)
	Get(ctx context.Context, sessionID uuid.UUID) (*Turn, error)
}

type service struct {
	store    Store
	scorer   *Scorer
	selector *Selector
	policy   Policy
	alerter  EmergencyAlerter
	log      *zap.Logger
	now      func() time.Time
}

func NewService(store Store, ai AdaptiveQuestioner, alerter EmergencyAlerter, policy Policy, log *zap.Logger) Service {
	scorer := NewScorer(store, log)
	return &service{
		store:    store,
		scorer:   scorer,
		selector: NewSelector(store, scorer, policy, ai, log),
		policy:   policy,
		alerter:  alerter,
		log:      log,
		now:      time.Now,
	}
}

func (s *service) Start(ctx context.Context, in Intake) (*Turn, error) {
	symptom := strings.TrimSpace(in.Symptom)
	if symptom == "" {
		return nil, fmt.Errorf("%w: symptom is required", ErrInvalidInput)
	}
	if in.Age != nil && (*in.Age < 0 || *in.Age > 130) {
		return nil, fmt.Errorf("%w: age out of range", ErrInvalidInput)
	}

	sess := &SymptomSession{
		ID:             uuid.New(),
		UserID:         in.UserID,
		InitialSymptom: symptom,
		Age:            in.Age,
		Gender:         strings.TrimSpace(in.Gender),
		State:          strings.TrimSpace(in.State),
		Status:         StatusActive,
		CreatedAt:      s.now(),
	}

	if check := EmergencyPrecheck(symptom); check.Emergency {
		sess.Status = StatusEmergency
		sess.EmergencyMessage = check.Message
		completed := s.now()
		sess.CompletedAt = &completed
		if err := s.store.CreateSession(ctx, sess); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		s.log.Warn("emergency pre-check triggered",
			zap.String("session_id", sess.ID.String()),
			zap.String("term", check.Term))
		s.alert(ctx, sess)
		return &Turn{Session: *sess, Done: true, Emergency: true, Message: check.Message}, nil
	}

	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.log.Info("triage session started", zap.String("session_id", sess.ID.String()))
	return s.advance(ctx, sess)
}

func (s *service) Answer(ctx context.Context, sessionID uuid.UUID, questionID int64, value string) (*Turn, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%w: answer is required", ErrInvalidInput)
	}

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != StatusActive {
		return nil, ErrSessionClosed
	}

	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if !q.Active {
		return nil, ErrQuestionNotFound
	}
	answers, err := s.store.ListAnswers(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	for _, a := range answers {
		if a.QuestionID == q.ID {
			return nil, ErrQuestionAnswered
		}
	}

	answer := &SessionAnswer{
		SessionID:   sess.ID,
		QuestionID:  q.ID,
		AnswerValue: value,
		Normalized:  NormalizeAnswer(value, q.AnswerType),
		AnsweredAt:  s.now(),
		Question:    *q,
	}
	if err := s.store.CreateAnswer(ctx, answer); err != nil {
		return nil, fmt.Errorf("save answer: %w", err)
	}

	if sess.CurrentStep < s.policy.MaxQuestions {
		sess.CurrentStep++
	}

	ranked, err := s.scorer.Score(ctx, sess)
	if err != nil {
		return nil, err
	}
	if sess.Status == StatusEmergency {
		s.alert(ctx, sess)
	}
	if s.policy.ShouldStop(sess) {
		return s.finish(ctx, sess, ranked)
	}
	return s.advance(ctx, sess)
}

func (s *service) Get(ctx context.Context, sessionID uuid.UUID) (*Turn, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ranked, err := s.store.ListSnapshots(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	answers, err := s.store.ListAnswers(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return &Turn{
		Session:   *sess,
		Ranking:   ranked,
		Answers:   answers,
		Done:      sess.Status != StatusActive,
		Emergency: sess.Status == StatusEmergency,
		Message:   sess.EmergencyMessage,
	}, nil
}

// advance asks the selector for the next question and finishes the
// session when there is none. Confidence and step limits are checked by
// Answer after each scoring pass, not here.
func (s *service) advance(ctx context.Context, sess *SymptomSession) (*Turn, error) {
	wasEmergency := sess.Status == StatusEmergency
	q, ranked, err := s.selector.Next(ctx, sess)
	if err != nil {
		return nil, err
	}
	if !wasEmergency && sess.Status == StatusEmergency {
		s.alert(ctx, sess)
	}
	if q == nil || sess.Status == StatusEmergency {
		if ranked == nil {
			if ranked, err = s.store.ListSnapshots(ctx, sess.ID); err != nil {
				return nil, fmt.Errorf("list snapshots: %w", err)
			}
		}
		return s.finish(ctx, sess, ranked)
	}
	return &Turn{Session: *sess, Question: q, Ranking: ranked}, nil
}

func (s *service) finish(ctx context.Context, sess *SymptomSession, ranked []RankedCondition) (*Turn, error) {
	if sess.Status != StatusEmergency {
		sess.Status = StatusCompleted
	}
	if sess.CompletedAt == nil {
		completed := s.now()
		sess.CompletedAt = &completed
	}
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("finalize session: %w", err)
	}
	s.log.Info("triage session finished",
		zap.String("session_id", sess.ID.String()),
		zap.String("status", string(sess.Status)),
		zap.Int("steps", sess.CurrentStep),
		zap.Float64("top_confidence", sess.TopConfidence))
	return &Turn{
		Session:   *sess,
		Ranking:   ranked,
		Done:      true,
		Emergency: sess.Status == StatusEmergency,
		Message:   sess.EmergencyMessage,
	}, nil
}

func (s *service) alert(ctx context.Context, sess *SymptomSession) {
	if s.alerter == nil {
		return
	}
	if err := s.alerter.AlertEmergency(ctx, *sess); err != nil {
		s.log.Error("emergency alert failed", zap.String("session_id", sess.ID.String()), zap.Error(err))
	}
}
