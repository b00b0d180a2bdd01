package triage

import (
	"context"
	"fmt"
	"math"
	"strings"

	"healthsync/internal/agent"

	"go.uber.org/zap"
)

const generalBodyArea = "General"

// AdaptiveQuestioner synthesizes a single follow-up question. A false
// result means nothing usable was produced.
type AdaptiveQuestioner interface {
	GenerateAdaptiveQuestion(ctx context.Context, in agent.AdaptiveInput) (agent.AdaptiveQuestion, bool)
}

type Selector struct {
	store  Store
	scorer *Scorer
	policy Policy
	ai     AdaptiveQuestioner
	log    *zap.Logger
}

func NewSelector(store Store, scorer *Scorer, policy Policy, ai AdaptiveQuestioner, log *zap.Logger) *Selector {
	return &Selector{store: store, scorer: scorer, policy: policy, ai: ai, log: log}
}

// Next re-scores the session and returns the next question together with
// the fresh ranking. A nil question means triage is complete.
func (s *Selector) Next(ctx context.Context, sess *SymptomSession) (*DiagnosticQuestion, []RankedCondition, error) {
	if sess.CurrentStep >= s.policy.MaxQuestions {
		return nil, nil, nil
	}

	answers, err := s.store.ListAnswers(ctx, sess.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list answers: %w", err)
	}
	ranked, err := s.scorer.score(ctx, sess, answers)
	if err != nil {
		return nil, nil, err
	}

	answered := make(map[int64]bool, len(answers))
	for _, a := range answers {
		answered[a.QuestionID] = true
	}

	active, err := s.activeSet(ctx, ranked)
	if err != nil {
		return nil, ranked, err
	}

	best, err := s.bestSplit(ctx, active, answered)
	if err != nil {
		return nil, ranked, err
	}
	if best != nil {
		return best, ranked, nil
	}

	q, err := s.fallback(ctx, sess, answers, answered)
	if err != nil {
		return nil, ranked, err
	}
	return q, ranked, nil
}

func (s *Selector) activeSet(ctx context.Context, ranked []RankedCondition) (map[int64]bool, error) {
	active := make(map[int64]bool, s.policy.ActiveConditions)
	if len(ranked) == 0 {
		all, err := s.store.ListConditions(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("list conditions: %w", err)
		}
		for _, c := range all {
			active[c.ID] = true
		}
		return active, nil
	}
	for i, r := range ranked {
		if i >= s.policy.ActiveConditions {
			break
		}
		active[r.Condition.ID] = true
	}
	return active, nil
}

// bestSplit picks the unanswered question whose symptom divides the active
// set most evenly. Questions come back ordered by id and only a strictly
// higher score replaces the leader, so ties go to the lowest id.
func (s *Selector) bestSplit(ctx context.Context, active map[int64]bool, answered map[int64]bool) (*DiagnosticQuestion, error) {
	if len(active) == 0 {
		return nil, nil
	}
	questions, err := s.store.ListActiveQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	var pending []DiagnosticQuestion
	var symptomIDs []int64
	seen := make(map[int64]bool)
	for _, q := range questions {
		if answered[q.ID] {
			continue
		}
		pending = append(pending, q)
		if !seen[q.SymptomID] {
			seen[q.SymptomID] = true
			symptomIDs = append(symptomIDs, q.SymptomID)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	links, err := s.store.LinksForSymptoms(ctx, symptomIDs)
	if err != nil {
		return nil, fmt.Errorf("links for questions: %w", err)
	}
	overlap := make(map[int64]map[int64]bool)
	for _, l := range links {
		if !active[l.ConditionID] {
			continue
		}
		if overlap[l.SymptomID] == nil {
			overlap[l.SymptomID] = make(map[int64]bool)
		}
		overlap[l.SymptomID][l.ConditionID] = true
	}

	n := float64(len(active))
	var best *DiagnosticQuestion
	bestScore := math.Inf(-1)
	for i := range pending {
		k := len(overlap[pending[i].SymptomID])
		if k == 0 {
			continue
		}
		score := QuestionScore(float64(k)/n, pending[i].Weight)
		if score > bestScore {
			bestScore = score
			best = &pending[i]
		}
	}
	return best, nil
}

// SplitQuality peaks at 1 when a question covers half of the active set.
func SplitQuality(ratio float64) float64 {
	return math.Max(0, 1-2*math.Abs(ratio-0.5))
}

func QuestionScore(ratio, weight float64) float64 {
	return 2*SplitQuality(ratio) + weight
}

func (s *Selector) fallback(ctx context.Context, sess *SymptomSession, answers []SessionAnswer, answered map[int64]bool) (*DiagnosticQuestion, error) {
	complaint := strings.TrimSpace(sess.InitialSymptom)
	if complaint == "" {
		return nil, nil
	}

	area, err := s.store.GetOrCreateBodyArea(ctx, generalBodyArea)
	if err != nil {
		return nil, fmt.Errorf("general body area: %w", err)
	}
	symptom, err := s.store.FindSymptomByName(ctx, complaint)
	if err != nil {
		return nil, fmt.Errorf("find symptom: %w", err)
	}
	if symptom == nil {
		symptom = &Symptom{Name: complaint, BodyAreaID: area.ID}
		if err := s.store.CreateSymptom(ctx, symptom); err != nil {
			return nil, fmt.Errorf("create symptom: %w", err)
		}
	}

	questions, err := s.store.ListActiveQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	var static *DiagnosticQuestion
	for i := range questions {
		q := &questions[i]
		if q.SymptomID != symptom.ID || answered[q.ID] {
			continue
		}
		if static == nil || q.Weight > static.Weight {
			static = q
		}
	}
	if static != nil {
		return static, nil
	}

	if s.ai == nil {
		return nil, nil
	}
	history := make([]agent.QA, 0, len(answers))
	for _, a := range answers {
		history = append(history, agent.QA{Question: a.Question.Text, Answer: a.AnswerValue})
	}
	generated, ok := s.ai.GenerateAdaptiveQuestion(ctx, agent.AdaptiveInput{
		Symptom: complaint,
		History: history,
		Step:    sess.CurrentStep + 1,
	})
	if !ok {
		s.log.Info("no adaptive question available, ending triage",
			zap.String("session_id", sess.ID.String()))
		return nil, nil
	}

	text, err := s.uniqueText(ctx, symptom.ID, strings.TrimSpace(generated.Text))
	if err != nil {
		return nil, err
	}
	q := &DiagnosticQuestion{
		Text:       text,
		AnswerType: AnswerYesNo,
		Options:    []string{},
		Weight:     1,
		Active:     true,
		SymptomID:  symptom.ID,
	}
	if generated.AnswerType == agent.AdaptiveSingleChoice {
		q.AnswerType = AnswerSingleChoice
		q.Options = generated.Options
	}
	if err := s.store.CreateQuestion(ctx, q); err != nil {
		return nil, fmt.Errorf("save adaptive question: %w", err)
	}
	return q, nil
}

func (s *Selector) uniqueText(ctx context.Context, symptomID int64, text string) (string, error) {
	candidate := text
	for n := 2; ; n++ {
		existing, err := s.store.FindQuestion(ctx, symptomID, candidate)
		if err != nil {
			return "", fmt.Errorf("find question: %w", err)
		}
		if existing == nil {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s (%d)", text, n)
	}
}
