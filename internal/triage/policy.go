package triage

import "healthsync/internal/config"

type Policy struct {
	MaxQuestions        int
	ConfidenceThreshold float64
	ActiveConditions    int
}

func DefaultPolicy() Policy {
	return Policy{MaxQuestions: 8, ConfidenceThreshold: 0.70, ActiveConditions: 5}
}

func PolicyFromConfig(cfg config.TriageConfig) Policy {
	p := DefaultPolicy()
	if cfg.MaxQuestions > 0 {
		p.MaxQuestions = cfg.MaxQuestions
	}
	if cfg.ConfidenceThreshold > 0 {
		p.ConfidenceThreshold = cfg.ConfidenceThreshold
	}
	if cfg.ActiveConditions > 0 {
		p.ActiveConditions = cfg.ActiveConditions
	}
	return p
}

// ShouldStop reports whether questioning is over. Emergency is terminal.
func (p Policy) ShouldStop(s *SymptomSession) bool {
	if s.Status == StatusEmergency {
		return true
	}
	if s.CurrentStep >= p.MaxQuestions {
		return true
	}
	return s.TopConfidence >= p.ConfidenceThreshold
}
