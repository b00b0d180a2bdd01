package triage

import "errors"

var (
	ErrSessionNotFound  = errors.New("triage session not found")
	ErrQuestionNotFound = errors.New("diagnostic question not found")
	ErrSessionClosed    = errors.New("triage session is no longer accepting answers")
	ErrQuestionAnswered = errors.New("question already answered in this session")
	ErrInvalidInput     = errors.New("invalid input")
)
