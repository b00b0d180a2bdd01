package triage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// negativeFactor scales the penalty applied for a "no" answer.
const negativeFactor = 0.7

type Scorer struct {
	store Store
	log   *zap.Logger
}

func NewScorer(store Store, log *zap.Logger) *Scorer {
	return &Scorer{store: store, log: log}
}

// Score re-ranks the session's candidate conditions from its answers,
// persists the snapshots and updates the session's top confidence and
// emergency status.
func (s *Scorer) Score(ctx context.Context, sess *SymptomSession) ([]RankedCondition, error) {
	answers, err := s.store.ListAnswers(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return s.score(ctx, sess, answers)
}

func (s *Scorer) score(ctx context.Context, sess *SymptomSession, answers []SessionAnswer) ([]RankedCondition, error) {
	conditions, err := s.candidates(ctx, sess.InitialSymptom)
	if err != nil {
		return nil, err
	}

	scores := make(map[int64]float64, len(conditions))
	for _, c := range conditions {
		scores[c.ID] = 0
	}

	bySymptom, err := s.linksBySymptom(ctx, answers)
	if err != nil {
		return nil, err
	}

	redFlag := false
	for _, a := range answers {
		if a.Normalized == Unknown {
			continue
		}
		for _, link := range bySymptom[a.Question.SymptomID] {
			if _, ok := scores[link.ConditionID]; !ok {
				continue
			}
			base := link.Weight * a.Question.Weight
			if a.Normalized == Yes {
				scores[link.ConditionID] += base
				if link.IsRedFlag {
					redFlag = true
				}
			} else {
				scores[link.ConditionID] -= negativeFactor * base
			}
		}
	}

	raw := make([]float64, len(conditions))
	for i, c := range conditions {
		raw[i] = scores[c.ID]
	}
	conf := Confidences(raw)

	ranked := make([]RankedCondition, len(conditions))
	for i, c := range conditions {
		ranked[i] = RankedCondition{Condition: c, Score: raw[i], Confidence: conf[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	if err := s.store.SaveSnapshots(ctx, sess.ID, ranked); err != nil {
		return nil, fmt.Errorf("save snapshots: %w", err)
	}

	sess.TopConfidence = 0
	for _, r := range ranked {
		if r.Confidence > sess.TopConfidence {
			sess.TopConfidence = r.Confidence
		}
	}
	if redFlag && sess.Status != StatusEmergency {
		sess.Status = StatusEmergency
		sess.EmergencyMessage = redFlagMessage
		s.log.Warn("red flag answer escalated session", zap.String("session_id", sess.ID.String()))
	}
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	return ranked, nil
}

// candidates returns the conditions linked to symptoms matching the
// complaint, falling back to every condition when nothing matches.
func (s *Scorer) candidates(ctx context.Context, complaint string) ([]Condition, error) {
	complaint = strings.TrimSpace(complaint)
	if complaint == "" {
		return s.store.ListConditions(ctx, nil)
	}

	symptomIDs, err := s.store.MatchSymptomIDs(ctx, complaint)
	if err != nil {
		return nil, fmt.Errorf("match symptoms: %w", err)
	}
	if len(symptomIDs) == 0 {
		return s.store.ListConditions(ctx, nil)
	}

	links, err := s.store.LinksForSymptoms(ctx, symptomIDs)
	if err != nil {
		return nil, fmt.Errorf("links for symptoms: %w", err)
	}
	seen := make(map[int64]bool, len(links))
	ids := make([]int64, 0, len(links))
	for _, l := range links {
		if !seen[l.ConditionID] {
			seen[l.ConditionID] = true
			ids = append(ids, l.ConditionID)
		}
	}
	if len(ids) == 0 {
		return s.store.ListConditions(ctx, nil)
	}
	return s.store.ListConditions(ctx, ids)
}

func (s *Scorer) linksBySymptom(ctx context.Context, answers []SessionAnswer) (map[int64][]ConditionSymptom, error) {
	if len(answers) == 0 {
		return nil, nil
	}
	seen := make(map[int64]bool)
	var ids []int64
	for _, a := range answers {
		if id := a.Question.SymptomID; !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	links, err := s.store.LinksForSymptoms(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("links for answered symptoms: %w", err)
	}
	out := make(map[int64][]ConditionSymptom, len(ids))
	for _, l := range links {
		out[l.SymptomID] = append(out[l.SymptomID], l)
	}
	return out, nil
}

// Confidences smooths scores into a distribution: (max(s,0)+1) / sum.
// Every value lies in (0,1) and they sum to 1.
func Confidences(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	total := 0.0
	for i, s := range scores {
		if s < 0 {
			s = 0
		}
		out[i] = s + 1
		total += out[i]
	}
	for i := range out {
		out[i] /= total
	}
	return out
}
