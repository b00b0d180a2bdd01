package triage

import (
	"context"
	"testing"

	"healthsync/internal/agent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAdaptive struct {
	question agent.AdaptiveQuestion
	ok       bool
	calls    []agent.AdaptiveInput
}

func (f *fakeAdaptive) GenerateAdaptiveQuestion(_ context.Context, in agent.AdaptiveInput) (agent.AdaptiveQuestion, bool) {
	f.calls = append(f.calls, in)
	return f.question, f.ok
}

// coughCatalog has two candidates for "cough". Question 5 covers both of
// them, question 6 covers half.
func coughCatalog() *memStore {
	m := newMemStore()
	m.addCondition(1, "Asthma", "Pulmonologist")
	m.addCondition(2, "Common cold", "General Physician")

	m.addSymptom(1, "cough")
	m.addSymptom(2, "wheeze")
	m.addSymptom(3, "fever")

	m.link(1, 1, 1, false)
	m.link(2, 1, 1, false)
	m.link(1, 2, 1, false)
	m.link(1, 3, 1, false)
	m.link(2, 3, 1, false)

	m.addQuestion(5, "Do you have a fever?", 3, 1)
	m.addQuestion(6, "Do you wheeze?", 2, 1)
	return m
}

func newTestSelector(m *memStore, ai AdaptiveQuestioner) *Selector {
	log := zap.NewNop()
	return NewSelector(m, NewScorer(m, log), DefaultPolicy(), ai, log)
}

func TestSplitQuality(t *testing.T) {
	assert.InDelta(t, 1.0, SplitQuality(0.5), 1e-9)
	assert.InDelta(t, 0.0, SplitQuality(1.0), 1e-9)
	assert.InDelta(t, 0.0, SplitQuality(0.0), 1e-9)
	assert.InDelta(t, 0.5, SplitQuality(0.25), 1e-9)
	assert.InDelta(t, 3.0, QuestionScore(0.5, 1), 1e-9)
	assert.InDelta(t, 1.0, QuestionScore(1.0, 1), 1e-9)
}

func TestSelector_PrefersEvenSplit(t *testing.T) {
	m := coughCatalog()
	sess := newTestSession(t, m, "cough")

	q, ranked, err := newTestSelector(m, nil).Next(context.Background(), sess)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, int64(6), q.ID)
	assert.Len(t, ranked, 2)
}

func TestSelector_TieGoesToLowestID(t *testing.T) {
	m := coughCatalog()
	m.addQuestion(8, "Is breathing noisy at night?", 2, 1)
	m.addQuestion(7, "Do you wheeze after exercise?", 2, 1)
	sess := newTestSession(t, m, "cough")

	q, _, err := newTestSelector(m, nil).Next(context.Background(), sess)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, int64(6), q.ID)

	answer(m, sess, 6, "no")
	q, _, err = newTestSelector(m, nil).Next(context.Background(), sess)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, int64(7), q.ID)
}

func TestSelector_SkipsAnsweredAndUnrelated(t *testing.T) {
	m := coughCatalog()
	m.addSymptom(4, "toothache")
	m.addQuestion(3, "Does chewing hurt?", 4, 5)
	sess := newTestSession(t, m, "cough")
	answer(m, sess, 6, "yes")

	q, _, err := newTestSelector(m, nil).Next(context.Background(), sess)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, int64(5), q.ID)
}

func TestSelector_StepCap(t *testing.T) {
	m := coughCatalog()
	sess := newTestSession(t, m, "cough")
	sess.CurrentStep = DefaultPolicy().MaxQuestions
	ai := &fakeAdaptive{ok: true, question: agent.AdaptiveQuestion{Text: "x", AnswerType: agent.AdaptiveYesNo}}

	q, ranked, err := newTestSelector(m, ai).Next(context.Background(), sess)
	require.NoError(t, err)
	assert.Nil(t, q)
	assert.Nil(t, ranked)
	assert.Empty(t, ai.calls)
}

func TestSelector_FallbackPrefersStaticQuestion(t *testing.T) {
	m := coughCatalog()
	m.addSymptom(9, "Rash")
	m.addQuestion(30, "Is the rash itchy?", 9, 1)
	m.addQuestion(31, "Is the rash spreading?", 9, 3)
	m.addQuestion(32, "Did the rash appear after a new food?", 9, 3)
	sess := newTestSession(t, m, "rash")
	answer(m, sess, 5, "no")
	answer(m, sess, 6, "no")
	ai := &fakeAdaptive{}

	q, _, err := newTestSelector(m, ai).Next(context.Background(), sess)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, int64(31), q.ID)
	assert.Empty(t, ai.calls)
	require.Len(t, m.areas, 1)
	assert.Equal(t, "General", m.areas[0].Name)
}

func TestSelector_FallbackGeneratesAdaptiveQuestion(t *testing.T) {
	m := coughCatalog()
	sess := newTestSession(t, m, "dizzy spells")
	answer(m, sess, 5, "no")
	answer(m, sess, 6, "yes")
	sess.CurrentStep = 2
	ai := &fakeAdaptive{ok: true, question: agent.AdaptiveQuestion{
		Text:       "How long do the spells last?",
		AnswerType: agent.AdaptiveSingleChoice,
		Options:    []string{"Seconds", "Minutes", "Hours"},
	}}

	q, _, err := newTestSelector(m, ai).Next(context.Background(), sess)
	require.NoError(t, err)
	require.NotNil(t, q)

	assert.Equal(t, "How long do the spells last?", q.Text)
	assert.Equal(t, AnswerSingleChoice, q.AnswerType)
	assert.Equal(t, []string{"Seconds", "Minutes", "Hours"}, q.Options)
	assert.Equal(t, 1.0, q.Weight)
	assert.True(t, q.Active)
	assert.NotZero(t, q.ID)

	symptom, err := m.FindSymptomByName(context.Background(), "Dizzy Spells")
	require.NoError(t, err)
	require.NotNil(t, symptom)
	assert.Equal(t, symptom.ID, q.SymptomID)
	assert.Equal(t, m.areas[0].ID, symptom.BodyAreaID)

	require.Len(t, ai.calls, 1)
	assert.Equal(t, "dizzy spells", ai.calls[0].Symptom)
	assert.Equal(t, 3, ai.calls[0].Step, "step being asked")
	assert.Equal(t, []agent.QA{
		{Question: "Do you have a fever?", Answer: "no"},
		{Question: "Do you wheeze?", Answer: "yes"},
	}, ai.calls[0].History)
}

func TestSelector_AdaptiveTextIsDeduplicated(t *testing.T) {
	m := coughCatalog()
	m.addSymptom(9, "dizzy spells")
	m.addQuestion(40, "Do you feel faint when standing?", 9, 1)
	m.addQuestion(41, "Do you feel faint when standing? (2)", 9, 1)
	sess := newTestSession(t, m, "dizzy spells")
	answer(m, sess, 5, "no")
	answer(m, sess, 6, "no")
	answer(m, sess, 40, "yes")
	answer(m, sess, 41, "yes")
	ai := &fakeAdaptive{ok: true, question: agent.AdaptiveQuestion{
		Text:       "Do you feel faint when standing?",
		AnswerType: agent.AdaptiveYesNo,
	}}

	q, _, err := newTestSelector(m, ai).Next(context.Background(), sess)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, "Do you feel faint when standing? (3)", q.Text)
	assert.Equal(t, AnswerYesNo, q.AnswerType)
	assert.Empty(t, q.Options)
}

func TestSelector_AdaptiveFailureEndsQuietly(t *testing.T) {
	m := coughCatalog()
	sess := newTestSession(t, m, "dizzy spells")
	answer(m, sess, 5, "no")
	answer(m, sess, 6, "no")
	before := len(m.questions)

	q, _, err := newTestSelector(m, &fakeAdaptive{ok: false}).Next(context.Background(), sess)
	require.NoError(t, err)
	assert.Nil(t, q)
	assert.Len(t, m.questions, before)
}
