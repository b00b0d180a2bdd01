package triage

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence the engine needs. List methods return rows in
// ascending id order so that ties resolve the same way on every call.
type Store interface {
	CreateSession(ctx context.Context, s *SymptomSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*SymptomSession, error)
	UpdateSession(ctx context.Context, s *SymptomSession) error

	CreateAnswer(ctx context.Context, a *SessionAnswer) error
	// ListAnswers returns answers in answered order with Question populated.
	ListAnswers(ctx context.Context, sessionID uuid.UUID) ([]SessionAnswer, error)

	// ListConditions returns the given conditions, or all of them when ids is nil.
	ListConditions(ctx context.Context, ids []int64) ([]Condition, error)
	// FindConditionByName returns the lowest-id condition whose name contains
	// name, or nil.
	FindConditionByName(ctx context.Context, name string) (*Condition, error)
	// MatchSymptomIDs returns symptoms whose name contains text or is contained
	// in it, case-insensitively.
	MatchSymptomIDs(ctx context.Context, text string) ([]int64, error)
	LinksForSymptoms(ctx context.Context, symptomIDs []int64) ([]ConditionSymptom, error)

	GetQuestion(ctx context.Context, id int64) (*DiagnosticQuestion, error)
	ListActiveQuestions(ctx context.Context) ([]DiagnosticQuestion, error)
	// FindQuestion returns the question with exactly this text for the
	// symptom, or nil.
	FindQuestion(ctx context.Context, symptomID int64, text string) (*DiagnosticQuestion, error)
	CreateQuestion(ctx context.Context, q *DiagnosticQuestion) error

	GetOrCreateBodyArea(ctx context.Context, name string) (*BodyArea, error)
	// FindSymptomByName matches case-insensitively and returns nil when absent.
	FindSymptomByName(ctx context.Context, name string) (*Symptom, error)
	CreateSymptom(ctx context.Context, s *Symptom) error

	SaveSnapshots(ctx context.Context, sessionID uuid.UUID, ranked []RankedCondition) error
	ListSnapshots(ctx context.Context, sessionID uuid.UUID) ([]RankedCondition, error)
}
