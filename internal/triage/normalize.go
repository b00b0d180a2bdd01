package triage

import (
	"encoding/json"
	"strings"
)

// Tristate is a normalized yes/no answer.
type Tristate int8

const (
	Unknown Tristate = iota
	Yes
	No
)

func (t Tristate) String() string {
	switch t {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "unknown"
	}
}

// Ptr converts to the nullable column representation.
func (t Tristate) Ptr() *bool {
	switch t {
	case Yes:
		v := true
		return &v
	case No:
		v := false
		return &v
	default:
		return nil
	}
}

func TristateFromPtr(b *bool) Tristate {
	switch {
	case b == nil:
		return Unknown
	case *b:
		return Yes
	default:
		return No
	}
}

func (t Tristate) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Ptr())
}

func (t *Tristate) UnmarshalJSON(data []byte) error {
	var b *bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	*t = TristateFromPtr(b)
	return nil
}

var (
	trueTokens  = map[string]bool{"yes": true, "true": true, "1": true}
	falseTokens = map[string]bool{"no": true, "false": true, "0": true}
)

// NormalizeAnswer maps a raw answer to Yes/No for yes_no questions. Every
// other answer type, and any unrecognized value, is Unknown.
func NormalizeAnswer(value string, answerType AnswerType) Tristate {
	if answerType != AnswerYesNo {
		return Unknown
	}
	v := strings.ToLower(strings.TrimSpace(value))
	switch {
	case trueTokens[v]:
		return Yes
	case falseTokens[v]:
		return No
	default:
		return Unknown
	}
}
