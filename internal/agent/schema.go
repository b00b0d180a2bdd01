package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Question types used on the wire for the bulk question set.
const (
	TypeYesNo        = "yesno"
	TypeText         = "text"
	TypeSingleChoice = "single_choice"
)

// Answer types used by adaptive fallback questions.
const (
	AdaptiveYesNo        = "yes_no"
	AdaptiveSingleChoice = "single_choice"
)

const (
	MinQuestions = 6
	MaxQuestions = 8
)

var urgencies = map[string]bool{"Low": true, "Moderate": true, "High": true}

type Intake struct {
	Age     *int   `json:"age"`
	Gender  string `json:"gender"`
	State   string `json:"state"`
	Symptom string `json:"symptom"`
}

type QuestionItem struct {
	ID      int      `json:"id"`
	Text    string   `json:"text"`
	Type    string   `json:"type"`
	Options []string `json:"options"`
}

type AnswerItem struct {
	QuestionID   int    `json:"question_id"`
	QuestionText string `json:"question_text"`
	Answer       string `json:"answer"`
}

type DiagnosisCondition struct {
	Name           string `json:"name"`
	Likelihood     string `json:"likelihood"`
	Reasoning      string `json:"reasoning"`
	Specialization string `json:"specialization"`
}

type Diagnosis struct {
	Conditions []DiagnosisCondition `json:"conditions"`
	Urgency    string               `json:"urgency"`
	Advice     string               `json:"advice"`
}

// QA is one answered question fed back to the adaptive generator.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type AdaptiveInput struct {
	Symptom string
	History []QA
	Step    int
}

type AdaptiveQuestion struct {
	Text       string   `json:"text"`
	AnswerType string   `json:"answer_type"`
	Options    []string `json:"options"`
}

// wire shapes carry the mandatory ai_generated marker.
type wireQuestion struct {
	ID          json.RawMessage `json:"id"`
	Text        string          `json:"text"`
	Type        string          `json:"type"`
	Options     []string        `json:"options"`
	AIGenerated *bool           `json:"ai_generated"`
}

type wireDiagnosis struct {
	Diagnosis
	AIGenerated *bool `json:"ai_generated"`
}

type wireAdaptive struct {
	AdaptiveQuestion
	AIGenerated *bool `json:"ai_generated"`
}

func marked(flag *bool) bool { return flag != nil && *flag }

// stripFences removes markdown code fences models like to wrap JSON in.
func stripFences(text string) string {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}

func cleanOptions(opts []string) []string {
	out := make([]string, 0, len(opts))
	for _, opt := range opts {
		if opt = strings.TrimSpace(opt); opt != "" {
			out = append(out, opt)
		}
	}
	return out
}

// ParseQuestions validates a bulk question-set response. Any violation fails
// the whole response.
func ParseQuestions(text string) ([]QuestionItem, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal([]byte(stripFences(text)), &rows); err != nil {
		return nil, schemaError("Could not parse AI questions JSON: %v", err)
	}
	if len(rows) < MinQuestions || len(rows) > MaxQuestions {
		return nil, schemaError("AI must return %d-%d questions, got %d.", MinQuestions, MaxQuestions, len(rows))
	}

	questions := make([]QuestionItem, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for idx, raw := range rows {
		var row wireQuestion
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, schemaError("AI question items must be JSON objects: %v", err)
		}
		if !marked(row.AIGenerated) {
			return nil, schemaError("AI generation marker missing for question item.")
		}
		q, err := validateQuestion(row, idx+1)
		if err != nil {
			return nil, err
		}
		sig := strings.ToLower(q.Text)
		if seen[sig] {
			return nil, schemaError("AI returned duplicate questions.")
		}
		seen[sig] = true
		questions = append(questions, q)
	}
	return questions, nil
}

func validateQuestion(row wireQuestion, id int) (QuestionItem, error) {
	q := QuestionItem{
		ID:   id,
		Text: strings.TrimSpace(row.Text),
		Type: strings.ToLower(strings.TrimSpace(row.Type)),
	}
	if q.Type == "" {
		q.Type = TypeYesNo
	}
	if q.Text == "" {
		return q, schemaError("AI returned an empty question.")
	}
	switch q.Type {
	case TypeYesNo, TypeText:
		q.Options = []string{}
	case TypeSingleChoice:
		q.Options = cleanOptions(row.Options)
		if len(q.Options) < 2 || len(q.Options) > 4 {
			return q, schemaError("AI single_choice question must include 2-4 options.")
		}
	default:
		return q, schemaError("AI returned unsupported question type: %s", q.Type)
	}
	return q, nil
}

// ParseDiagnosis validates a diagnosis synthesis response.
func ParseDiagnosis(text string) (*Diagnosis, error) {
	var row wireDiagnosis
	if err := json.Unmarshal([]byte(stripFences(text)), &row); err != nil {
		return nil, schemaError("Could not parse AI diagnosis JSON: %v", err)
	}
	if !marked(row.AIGenerated) {
		return nil, schemaError("AI generation marker missing for diagnosis.")
	}

	d := Diagnosis{
		Urgency: strings.TrimSpace(row.Urgency),
		Advice:  strings.TrimSpace(row.Advice),
	}
	for _, c := range row.Conditions {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		c.Likelihood = strings.TrimSpace(c.Likelihood)
		c.Reasoning = strings.TrimSpace(c.Reasoning)
		c.Specialization = strings.TrimSpace(c.Specialization)
		d.Conditions = append(d.Conditions, c)
	}
	if len(d.Conditions) == 0 {
		return nil, schemaError("AI diagnosis returned no valid conditions.")
	}
	if !urgencies[d.Urgency] {
		return nil, schemaError("AI diagnosis returned invalid urgency.")
	}
	if d.Advice == "" {
		return nil, schemaError("AI diagnosis returned empty advice.")
	}
	return &d, nil
}

// ParseAdaptive validates a single adaptive fallback question.
func ParseAdaptive(text string) (AdaptiveQuestion, error) {
	var row wireAdaptive
	if err := json.Unmarshal([]byte(stripFences(text)), &row); err != nil {
		return AdaptiveQuestion{}, schemaError("Could not parse adaptive question JSON: %v", err)
	}
	if !marked(row.AIGenerated) {
		return AdaptiveQuestion{}, schemaError("AI generation marker missing for adaptive question.")
	}
	q := AdaptiveQuestion{
		Text:       strings.TrimSpace(row.Text),
		AnswerType: strings.ToLower(strings.TrimSpace(row.AnswerType)),
	}
	if q.Text == "" {
		return AdaptiveQuestion{}, schemaError("AI returned an empty adaptive question.")
	}
	switch q.AnswerType {
	case AdaptiveYesNo:
		q.Options = []string{}
	case AdaptiveSingleChoice:
		q.Options = cleanOptions(row.Options)
		if len(q.Options) < 2 || len(q.Options) > 5 {
			return AdaptiveQuestion{}, schemaError("AI single_choice adaptive question must include 2-5 options.")
		}
	default:
		return AdaptiveQuestion{}, schemaError("AI returned unsupported answer_type: %s", q.AnswerType)
	}
	return q, nil
}

func (i Intake) ageLabel() string {
	if i.Age == nil {
		return "unknown"
	}
	return fmt.Sprintf("%d", *i.Age)
}
