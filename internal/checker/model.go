package checker

import (
	"strings"

	"github.com/google/uuid"

	"healthsync/internal/agent"
	"healthsync/internal/doctors"
	"healthsync/internal/recommend"
	"healthsync/internal/triage"
)

// flowVersion is bumped whenever FlowState gains a field that older blobs
// need defaulted on read.
const flowVersion = 2

type AICalls struct {
	Questions int `json:"questions"`
	Diagnosis int `json:"diagnosis"`
}

// FlowState is everything one client's check needs between requests.
type FlowState struct {
	Version          int                  `json:"version"`
	SessionID        *uuid.UUID           `json:"session_id"`
	Intake           agent.Intake         `json:"intake"`
	Questions        []agent.QuestionItem `json:"questions"`
	Answers          []agent.AnswerItem   `json:"answers"`
	CurrentIndex     int                  `json:"current_index"`
	Diagnosis        *agent.Diagnosis     `json:"diagnosis"`
	DiagnosisError   string               `json:"diagnosis_error"`
	AICalls          *AICalls             `json:"ai_calls"`
	Emergency        bool                 `json:"emergency"`
	EmergencyMessage string               `json:"emergency_message,omitempty"`
}

// upgrade fills in what older blobs lack and normalizes the rest. Blobs
// written before ai_calls existed always made both AI calls they could have
// made.
func (f *FlowState) upgrade() {
	if f.Version < flowVersion || f.AICalls == nil {
		if f.AICalls == nil {
			f.AICalls = &AICalls{}
			if len(f.Questions) > 0 {
				f.AICalls.Questions = 1
			}
			if f.Diagnosis != nil && f.DiagnosisError == "" {
				f.AICalls.Diagnosis = 1
			}
		}
		f.Version = flowVersion
	}
	if f.Questions == nil {
		f.Questions = []agent.QuestionItem{}
	}
	if f.Answers == nil {
		f.Answers = []agent.AnswerItem{}
	}
	f.CurrentIndex = min(max(f.CurrentIndex, 0), len(f.Questions))
}

func (f *FlowState) HasSession() bool {
	if f == nil {
		return false
	}
	if f.Emergency {
		return f.SessionID != nil
	}
	return len(f.Questions) > 0 && f.Intake.Symptom != ""
}

func (f *FlowState) current() *agent.QuestionItem {
	if f.CurrentIndex < 0 || f.CurrentIndex >= len(f.Questions) {
		return nil
	}
	q := f.Questions[f.CurrentIndex]
	return &q
}

func (f *FlowState) completed() bool {
	return f.Emergency || f.CurrentIndex >= len(f.Questions)
}

// Progress describes where the client is in the question set.
type Progress struct {
	HasSession       bool                `json:"has_session"`
	Completed        bool                `json:"completed"`
	SessionID        *uuid.UUID          `json:"session_id,omitempty"`
	Question         *agent.QuestionItem `json:"question"`
	Step             int                 `json:"step"`
	Total            int                 `json:"total"`
	Progress         int                 `json:"progress"`
	Emergency        bool                `json:"emergency"`
	EmergencyMessage string              `json:"emergency_message,omitempty"`
}

type Result struct {
	SessionID           *uuid.UUID            `json:"session_id,omitempty"`
	Diagnosis           agent.Diagnosis       `json:"diagnosis"`
	RiskBanner          string                `json:"risk_banner"`
	Emergency           bool                  `json:"emergency"`
	EmergencyMessage    string                `json:"emergency_message,omitempty"`
	MatchedConditions   []triage.Condition    `json:"matched_conditions"`
	RecommendedDoctors  []doctors.Doctor      `json:"recommended_doctors"`
	RecommendedArticles []recommend.Article   `json:"recommended_articles"`
	AICalls             AICalls               `json:"ai_calls"`
	AIError             string                `json:"ai_error"`
	Collectible         recommend.Collectible `json:"community_collectible"`
}

const (
	bannerHigh     = "High-risk pattern detected. Seek urgent medical care now."
	bannerModerate = "Moderate-risk pattern detected. Arrange a doctor visit soon."
	bannerLow      = "Low-risk pattern detected. Continue monitoring and seek care if symptoms worsen."

	unavailableAdvice = "Assessment unavailable because live AI generation failed. Please retry shortly."
)

func RiskBanner(urgency string) string {
	switch strings.ToLower(strings.TrimSpace(urgency)) {
	case "high":
		return bannerHigh
	case "moderate":
		return bannerModerate
	default:
		return bannerLow
	}
}
