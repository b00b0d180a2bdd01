package triage

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type UrgencyLevel string

const (
	UrgencySelfCare  UrgencyLevel = "self_care"
	UrgencyClinic    UrgencyLevel = "clinic"
	UrgencyEmergency UrgencyLevel = "emergency"
)

type AnswerType string

const (
	AnswerYesNo        AnswerType = "yes_no"
	AnswerSingleChoice AnswerType = "single_choice"
	AnswerText         AnswerType = "text"
)

type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusEmergency SessionStatus = "emergency"
)

type BodyArea struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Symptom struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	BodyAreaID int64  `json:"body_area_id"`
}

type Condition struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	UrgencyLevel   UrgencyLevel `json:"urgency_level"`
	Specialization string       `json:"specialization"`
}

// Specializations splits the comma-separated specialization field.
func (c Condition) Specializations() []string {
	var out []string
	for _, part := range strings.Split(c.Specialization, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type ConditionSymptom struct {
	ID          int64   `json:"id"`
	ConditionID int64   `json:"condition_id"`
	SymptomID   int64   `json:"symptom_id"`
	Weight      float64 `json:"weight"`
	IsRedFlag   bool    `json:"is_red_flag"`
}

type DiagnosticQuestion struct {
	ID         int64      `json:"id"`
	Text       string     `json:"text"`
	AnswerType AnswerType `json:"answer_type"`
	Options    []string   `json:"options"`
	Weight     float64    `json:"weight"`
	Active     bool       `json:"active"`
	SymptomID  int64      `json:"symptom_id"`
}

// SymptomSession is one triage run. Rows are never deleted.
type SymptomSession struct {
	ID               uuid.UUID     `json:"id"`
	UserID           *uuid.UUID    `json:"user_id,omitempty"`
	InitialSymptom   string        `json:"initial_symptom"`
	Age              *int          `json:"age,omitempty"`
	Gender           string        `json:"gender"`
	State            string        `json:"state"`
	Status           SessionStatus `json:"status"`
	CurrentStep      int           `json:"current_step"`
	TopConfidence    float64       `json:"top_confidence"`
	EmergencyMessage string        `json:"emergency_message,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
}

type SessionAnswer struct {
	ID          int64     `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	QuestionID  int64     `json:"question_id"`
	AnswerValue string    `json:"answer_value"`
	Normalized  Tristate  `json:"normalized"`
	AnsweredAt  time.Time `json:"answered_at"`

	// Question is populated by Store.ListAnswers.
	Question DiagnosticQuestion `json:"-"`
}

// RankedCondition is one row of the current ranking; persisted as a
// condition score snapshot keyed by (session, condition).
type RankedCondition struct {
	Condition  Condition `json:"condition"`
	Score      float64   `json:"score"`
	Confidence float64   `json:"confidence"`
}

type Intake struct {
	Symptom string
	Age     *int
	Gender  string
	State   string
	UserID  *uuid.UUID
}
