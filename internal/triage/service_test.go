package triage

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingAlerter struct {
	sessions []SymptomSession
	err      error
}

func (a *recordingAlerter) AlertEmergency(_ context.Context, sess SymptomSession) error {
	a.sessions = append(a.sessions, sess)
	return a.err
}

func newTestService(m *memStore, policy Policy) (Service, *recordingAlerter) {
	alerter := &recordingAlerter{}
	return NewService(m, nil, alerter, policy, zap.NewNop()), alerter
}

func TestService_StartEmergencyPrecheck(t *testing.T) {
	m := coughCatalog()
	svc, alerter := newTestService(m, DefaultPolicy())

	turn, err := svc.Start(context.Background(), Intake{Symptom: "Sudden CHEST PAIN and sweating"})
	require.NoError(t, err)

	assert.True(t, turn.Emergency)
	assert.True(t, turn.Done)
	assert.Nil(t, turn.Question)
	assert.Equal(t, precheckMessage, turn.Message)

	stored := m.sessions[turn.Session.ID]
	assert.Equal(t, StatusEmergency, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
	assert.Empty(t, m.snapshots[turn.Session.ID])
	assert.Len(t, alerter.sessions, 1)
}

func TestService_StartValidatesIntake(t *testing.T) {
	svc, _ := newTestService(coughCatalog(), DefaultPolicy())

	_, err := svc.Start(context.Background(), Intake{Symptom: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	age := -3
	_, err = svc.Start(context.Background(), Intake{Symptom: "cough", Age: &age})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestService_NeverRepeatsQuestions(t *testing.T) {
	ctx := context.Background()
	m := coughCatalog()
	m.addQuestion(4, "Is the cough dry?", 1, 1)
	svc, _ := newTestService(m, DefaultPolicy())

	turn, err := svc.Start(ctx, Intake{Symptom: "cough"})
	require.NoError(t, err)

	seen := map[int64]bool{}
	for !turn.Done {
		require.NotNil(t, turn.Question)
		require.False(t, seen[turn.Question.ID], "question %d asked twice", turn.Question.ID)
		seen[turn.Question.ID] = true

		turn, err = svc.Answer(ctx, turn.Session.ID, turn.Question.ID, "no")
		require.NoError(t, err)
	}

	assert.Len(t, seen, 3)
	assert.Equal(t, StatusCompleted, turn.Session.Status)
	assert.NotNil(t, turn.Session.CompletedAt)
	assert.Equal(t, 3, turn.Session.CurrentStep)
}

func TestService_StopsOnConfidence(t *testing.T) {
	ctx := context.Background()
	m := coughCatalog()
	m.addQuestion(9, "Does exercise bring on wheezing?", 2, 3)
	svc, _ := newTestService(m, DefaultPolicy())

	turn, err := svc.Start(ctx, Intake{Symptom: "cough"})
	require.NoError(t, err)
	require.NotNil(t, turn.Question)
	require.Equal(t, int64(9), turn.Question.ID)

	turn, err = svc.Answer(ctx, turn.Session.ID, 9, "Yes")
	require.NoError(t, err)
	assert.True(t, turn.Done)
	assert.False(t, turn.Emergency)
	assert.Equal(t, StatusCompleted, turn.Session.Status)
	assert.InDelta(t, 0.8, turn.Session.TopConfidence, 1e-9)
	require.NotEmpty(t, turn.Ranking)
	assert.Equal(t, "Asthma", turn.Ranking[0].Condition.Name)
}

func TestService_StopsAtStepCap(t *testing.T) {
	ctx := context.Background()
	m := coughCatalog()
	m.addQuestion(4, "Is the cough dry?", 1, 1)
	policy := DefaultPolicy()
	policy.MaxQuestions = 1
	svc, _ := newTestService(m, policy)

	turn, err := svc.Start(ctx, Intake{Symptom: "cough"})
	require.NoError(t, err)
	turn, err = svc.Answer(ctx, turn.Session.ID, turn.Question.ID, "no")
	require.NoError(t, err)
	assert.True(t, turn.Done)
	assert.Equal(t, 1, turn.Session.CurrentStep)
	assert.Equal(t, StatusCompleted, turn.Session.Status)
}

func TestService_RedFlagAnswerEscalates(t *testing.T) {
	ctx := context.Background()
	m := coughCatalog()
	m.addSymptom(7, "blue lips")
	m.link(1, 7, 1, true)
	m.addQuestion(10, "Are your lips turning blue?", 7, 4)
	svc, alerter := newTestService(m, DefaultPolicy())

	turn, err := svc.Start(ctx, Intake{Symptom: "cough"})
	require.NoError(t, err)
	require.Equal(t, int64(10), turn.Question.ID)

	turn, err = svc.Answer(ctx, turn.Session.ID, 10, "yes")
	require.NoError(t, err)
	assert.True(t, turn.Done)
	assert.True(t, turn.Emergency)
	assert.Equal(t, redFlagMessage, turn.Message)
	assert.Equal(t, StatusEmergency, m.sessions[turn.Session.ID].Status)
	assert.Len(t, alerter.sessions, 1)

	_, err = svc.Answer(ctx, turn.Session.ID, 6, "no")
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestService_AnswerErrors(t *testing.T) {
	ctx := context.Background()
	m := coughCatalog()
	m.addQuestion(4, "Is the cough dry?", 1, 1)
	svc, _ := newTestService(m, DefaultPolicy())

	turn, err := svc.Start(ctx, Intake{Symptom: "cough"})
	require.NoError(t, err)
	id := turn.Session.ID

	_, err = svc.Answer(ctx, id, turn.Question.ID, "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Answer(ctx, uuid.New(), turn.Question.ID, "yes")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Answer(ctx, id, 999, "yes")
	assert.ErrorIs(t, err, ErrQuestionNotFound)

	_, err = svc.Answer(ctx, id, turn.Question.ID, "no")
	require.NoError(t, err)
	_, err = svc.Answer(ctx, id, turn.Question.ID, "yes")
	assert.ErrorIs(t, err, ErrQuestionAnswered)
}

func TestService_AlertFailureIsNotFatal(t *testing.T) {
	m := coughCatalog()
	alerter := &recordingAlerter{err: errors.New("telegram down")}
	svc := NewService(m, nil, alerter, DefaultPolicy(), zap.NewNop())

	turn, err := svc.Start(context.Background(), Intake{Symptom: "a seizure an hour ago"})
	require.NoError(t, err)
	assert.True(t, turn.Emergency)
}

func TestService_Get(t *testing.T) {
	ctx := context.Background()
	m := coughCatalog()
	m.addQuestion(4, "Is the cough dry?", 1, 1)
	svc, _ := newTestService(m, DefaultPolicy())

	turn, err := svc.Start(ctx, Intake{Symptom: "cough"})
	require.NoError(t, err)
	_, err = svc.Answer(ctx, turn.Session.ID, turn.Question.ID, "yes")
	require.NoError(t, err)

	got, err := svc.Get(ctx, turn.Session.ID)
	require.NoError(t, err)
	assert.False(t, got.Done)
	assert.Len(t, got.Answers, 1)
	require.Len(t, got.Ranking, 2)
	assert.Equal(t, "Asthma", got.Ranking[0].Condition.Name)

	_, err = svc.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestService_StartAsksRedFlagQuestionForSingleCandidate(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	m.addCondition(1, "Meningitis", "Neurologist")
	m.addSymptom(1, "stiff neck")
	m.addSymptom(2, "fever")
	m.link(1, 1, 1, false)
	m.link(1, 2, 2, true)
	m.addQuestion(3, "Do you have a high fever?", 2, 1)
	svc, alerter := newTestService(m, DefaultPolicy())

	turn, err := svc.Start(ctx, Intake{Symptom: "stiff neck"})
	require.NoError(t, err)
	assert.False(t, turn.Done)
	require.NotNil(t, turn.Question)
	assert.Equal(t, int64(3), turn.Question.ID)
	assert.Equal(t, StatusActive, m.sessions[turn.Session.ID].Status)
	assert.Equal(t, 0, turn.Session.CurrentStep)

	turn, err = svc.Answer(ctx, turn.Session.ID, 3, "yes")
	require.NoError(t, err)
	assert.True(t, turn.Done)
	assert.True(t, turn.Emergency)
	assert.Equal(t, StatusEmergency, m.sessions[turn.Session.ID].Status)
	assert.Len(t, alerter.sessions, 1)
}

func TestService_AnswerRejectsInactiveQuestion(t *testing.T) {
	ctx := context.Background()
	m := coughCatalog()
	m.questions = append(m.questions, DiagnosticQuestion{
		ID: 20, Text: "Retired question", AnswerType: AnswerYesNo, Options: []string{}, Weight: 1, Active: false, SymptomID: 1,
	})
	svc, _ := newTestService(m, DefaultPolicy())

	turn, err := svc.Start(ctx, Intake{Symptom: "cough"})
	require.NoError(t, err)

	_, err = svc.Answer(ctx, turn.Session.ID, 20, "yes")
	assert.ErrorIs(t, err, ErrQuestionNotFound)
	assert.Empty(t, m.answers)
}
