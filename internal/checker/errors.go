package checker

import "errors"

var (
	ErrNoFlow       = errors.New("no symptom check in progress")
	ErrIncomplete   = errors.New("symptom check has unanswered questions")
	ErrInvalidInput = errors.New("invalid input")
)
