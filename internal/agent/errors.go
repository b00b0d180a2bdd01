package agent

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrorKind classifies why a generation call failed.
type ErrorKind string

const (
	KindQuota         ErrorKind = "quota"
	KindInvalidKey    ErrorKind = "invalid_key"
	KindForbidden     ErrorKind = "forbidden"
	KindModelNotFound ErrorKind = "model_not_found"
	KindUnavailable   ErrorKind = "unavailable"
	KindSchema        ErrorKind = "schema"
	KindFailed        ErrorKind = "failed"
)

// ErrNoAPIKey is returned by a generator that has no credentials configured.
var ErrNoAPIKey = errors.New("generative API key not configured")

// ErrNoCandidates means the provider answered without any generated text.
var ErrNoCandidates = errors.New("gemini returned no candidates")

// GenerationError is the only error type returned by Client generation calls.
// Reason is safe to show to end users.
type GenerationError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Reason
}

func (e *GenerationError) Unwrap() error { return e.Err }

func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

func schemaError(format string, args ...any) *GenerationError {
	return &GenerationError{Kind: KindSchema, Reason: fmt.Sprintf(format, args...)}
}

var retryDelayPattern = regexp.MustCompile(`retryDelay['"]?\s*:\s*['"]?(\d+)s`)

// classify maps a transport failure to a user-facing GenerationError by
// matching the provider's error text.
func classify(err error) *GenerationError {
	if err == nil {
		return &GenerationError{Kind: KindFailed, Reason: "Gemini request failed. Check API key, billing, and model access."}
	}
	if errors.Is(err, ErrNoAPIKey) {
		return &GenerationError{
			Kind:   KindUnavailable,
			Reason: "Gemini client unavailable. Check GEMINI_API_KEY and SDK setup.",
			Err:    err,
		}
	}

	message := err.Error()
	lowered := strings.ToLower(message)
	switch {
	case strings.Contains(lowered, "resource_exhausted") || strings.Contains(lowered, "quota") || strings.Contains(lowered, "429"):
		hint := ""
		if m := retryDelayPattern.FindStringSubmatch(message); m != nil {
			hint = fmt.Sprintf(" Retry in about %s seconds.", m[1])
		}
		return &GenerationError{
			Kind: KindQuota,
			Reason: "Gemini quota exceeded for this project/model (429 RESOURCE_EXHAUSTED). " +
				"A new API key in the same project will not bypass quota." + hint,
			Err: err,
		}
	case strings.Contains(lowered, "api key not valid") || strings.Contains(lowered, "invalid api key") || strings.Contains(lowered, "401"):
		return &GenerationError{
			Kind:   KindInvalidKey,
			Reason: "Gemini API key is invalid or unauthorized (401). Update GEMINI_API_KEY and restart server.",
			Err:    err,
		}
	case strings.Contains(lowered, "permission") || strings.Contains(lowered, "403"):
		return &GenerationError{
			Kind:   KindForbidden,
			Reason: "Gemini request forbidden (403). Check project permissions, API enablement, and billing.",
			Err:    err,
		}
	case strings.Contains(lowered, "not_found") || strings.Contains(lowered, "404"):
		return &GenerationError{
			Kind:   KindModelNotFound,
			Reason: "Gemini model not found (404). Check GEMINI_MODEL.",
			Err:    err,
		}
	}
	return &GenerationError{
		Kind:   KindFailed,
		Reason: "Gemini request failed. Check API key, billing, and model access.",
		Err:    err,
	}
}
