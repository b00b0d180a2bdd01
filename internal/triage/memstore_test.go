package triage

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// memStore is an in-memory Store for engine tests.
type memStore struct {
	sessions   map[uuid.UUID]SymptomSession
	answers    []SessionAnswer
	conditions []Condition
	symptoms   []Symptom
	links      []ConditionSymptom
	questions  []DiagnosticQuestion
	areas      []BodyArea
	snapshots  map[uuid.UUID]map[int64]RankedCondition
	nextID     int64
}

func newMemStore() *memStore {
	return &memStore{
		sessions:  make(map[uuid.UUID]SymptomSession),
		snapshots: make(map[uuid.UUID]map[int64]RankedCondition),
		nextID:    1000,
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addCondition(id int64, name, specialization string) {
	m.conditions = append(m.conditions, Condition{ID: id, Name: name, UrgencyLevel: UrgencyClinic, Specialization: specialization})
}

func (m *memStore) addSymptom(id int64, name string) {
	m.symptoms = append(m.symptoms, Symptom{ID: id, Name: name, BodyAreaID: 1})
}

func (m *memStore) link(conditionID, symptomID int64, weight float64, redFlag bool) {
	m.links = append(m.links, ConditionSymptom{
		ID: m.id(), ConditionID: conditionID, SymptomID: symptomID, Weight: weight, IsRedFlag: redFlag,
	})
}

func (m *memStore) addQuestion(id int64, text string, symptomID int64, weight float64) {
	m.questions = append(m.questions, DiagnosticQuestion{
		ID: id, Text: text, AnswerType: AnswerYesNo, Options: []string{}, Weight: weight, Active: true, SymptomID: symptomID,
	})
}

func (m *memStore) CreateSession(_ context.Context, s *SymptomSession) error {
	m.sessions[s.ID] = *s
	return nil
}

func (m *memStore) GetSession(_ context.Context, id uuid.UUID) (*SymptomSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (m *memStore) UpdateSession(_ context.Context, s *SymptomSession) error {
	if _, ok := m.sessions[s.ID]; !ok {
		return ErrSessionNotFound
	}
	m.sessions[s.ID] = *s
	return nil
}

func (m *memStore) CreateAnswer(_ context.Context, a *SessionAnswer) error {
	a.ID = m.id()
	m.answers = append(m.answers, *a)
	return nil
}

func (m *memStore) ListAnswers(_ context.Context, sessionID uuid.UUID) ([]SessionAnswer, error) {
	var out []SessionAnswer
	for _, a := range m.answers {
		if a.SessionID != sessionID {
			continue
		}
		for _, q := range m.questions {
			if q.ID == a.QuestionID {
				a.Question = q
			}
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memStore) ListConditions(_ context.Context, ids []int64) ([]Condition, error) {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Condition
	for _, c := range m.conditions {
		if ids == nil || want[c.ID] {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) FindConditionByName(ctx context.Context, name string) (*Condition, error) {
	all, _ := m.ListConditions(ctx, nil)
	for _, c := range all {
		if strings.Contains(strings.ToLower(c.Name), strings.ToLower(strings.TrimSpace(name))) {
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memStore) MatchSymptomIDs(_ context.Context, text string) ([]int64, error) {
	text = strings.ToLower(text)
	var ids []int64
	for _, s := range m.symptoms {
		name := strings.ToLower(s.Name)
		if strings.Contains(name, text) || strings.Contains(text, name) {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

func (m *memStore) LinksForSymptoms(_ context.Context, symptomIDs []int64) ([]ConditionSymptom, error) {
	want := make(map[int64]bool, len(symptomIDs))
	for _, id := range symptomIDs {
		want[id] = true
	}
	var out []ConditionSymptom
	for _, l := range m.links {
		if want[l.SymptomID] {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) GetQuestion(_ context.Context, id int64) (*DiagnosticQuestion, error) {
	for _, q := range m.questions {
		if q.ID == id {
			return &q, nil
		}
	}
	return nil, ErrQuestionNotFound
}

func (m *memStore) ListActiveQuestions(_ context.Context) ([]DiagnosticQuestion, error) {
	var out []DiagnosticQuestion
	for _, q := range m.questions {
		if q.Active {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) FindQuestion(_ context.Context, symptomID int64, text string) (*DiagnosticQuestion, error) {
	for _, q := range m.questions {
		if q.SymptomID == symptomID && q.Text == text {
			return &q, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateQuestion(_ context.Context, q *DiagnosticQuestion) error {
	q.ID = m.id()
	m.questions = append(m.questions, *q)
	return nil
}

func (m *memStore) GetOrCreateBodyArea(_ context.Context, name string) (*BodyArea, error) {
	for _, a := range m.areas {
		if a.Name == name {
			return &a, nil
		}
	}
	a := BodyArea{ID: m.id(), Name: name}
	m.areas = append(m.areas, a)
	return &a, nil
}

func (m *memStore) FindSymptomByName(_ context.Context, name string) (*Symptom, error) {
	for _, s := range m.symptoms {
		if strings.EqualFold(s.Name, name) {
			return &s, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateSymptom(_ context.Context, s *Symptom) error {
	s.ID = m.id()
	m.symptoms = append(m.symptoms, *s)
	return nil
}

func (m *memStore) SaveSnapshots(_ context.Context, sessionID uuid.UUID, ranked []RankedCondition) error {
	if m.snapshots[sessionID] == nil {
		m.snapshots[sessionID] = make(map[int64]RankedCondition)
	}
	for _, r := range ranked {
		m.snapshots[sessionID][r.Condition.ID] = r
	}
	return nil
}

func (m *memStore) ListSnapshots(_ context.Context, sessionID uuid.UUID) ([]RankedCondition, error) {
	var out []RankedCondition
	for _, r := range m.snapshots[sessionID] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Condition.ID < out[j].Condition.ID
	})
	return out, nil
}
