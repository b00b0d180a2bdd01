package triage

import "strings"

const (
	precheckMessage = "Your symptoms may require emergency care. Seek immediate help."
	redFlagMessage  = "A red-flag symptom was detected. Seek emergency care immediately."
)

var emergencyTerms = []string{
	"chest pain",
	"difficulty breathing",
	"shortness of breath",
	"unconscious",
	"seizure",
	"heavy bleeding",
}

type EmergencyCheck struct {
	Emergency bool   `json:"emergency"`
	Term      string `json:"term,omitempty"`
	Message   string `json:"message,omitempty"`
}

// EmergencyPrecheck scans the initial complaint for red-flag phrases. The
// first matching term wins.
func EmergencyPrecheck(initialSymptom string) EmergencyCheck {
	text := strings.ToLower(strings.TrimSpace(initialSymptom))
	for _, term := range emergencyTerms {
		if strings.Contains(text, term) {
			return EmergencyCheck{Emergency: true, Term: term, Message: precheckMessage}
		}
	}
	return EmergencyCheck{}
}
