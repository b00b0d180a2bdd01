package triage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAnswer(t *testing.T) {
	tests := []struct {
		value string
		typ   AnswerType
		want  Tristate
	}{
		{"yes", AnswerYesNo, Yes},
		{" YES ", AnswerYesNo, Yes},
		{"True", AnswerYesNo, Yes},
		{"1", AnswerYesNo, Yes},
		{"no", AnswerYesNo, No},
		{"FALSE", AnswerYesNo, No},
		{"0", AnswerYesNo, No},
		{"maybe", AnswerYesNo, Unknown},
		{"", AnswerYesNo, Unknown},
		{"yes", AnswerSingleChoice, Unknown},
		{"no", AnswerText, Unknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeAnswer(tt.value, tt.typ), "%q as %s", tt.value, tt.typ)
	}
}

func TestNormalizeAnswer_Idempotent(t *testing.T) {
	for _, v := range []string{"yes", "no", "1", "0", "true", "false", "unsure", ""} {
		first := NormalizeAnswer(v, AnswerYesNo)
		assert.Equal(t, first, NormalizeAnswer(first.String(), AnswerYesNo), v)
	}
}

func TestTristateJSON(t *testing.T) {
	for _, ts := range []Tristate{Yes, No, Unknown} {
		raw, err := json.Marshal(ts)
		require.NoError(t, err)

		var back Tristate
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.Equal(t, ts, back)
	}

	raw, _ := json.Marshal(Unknown)
	assert.JSONEq(t, "null", string(raw))
	assert.Equal(t, Unknown, TristateFromPtr(Unknown.Ptr()))
}

func TestEmergencyPrecheck(t *testing.T) {
	check := EmergencyPrecheck("my chest hurts, some pain when I cough")
	assert.False(t, check.Emergency, "terms must match as whole phrases")

	check = EmergencyPrecheck("Chest pain since morning, shortness of breath")
	require.True(t, check.Emergency)
	assert.Equal(t, "chest pain", check.Term)
	assert.Equal(t, precheckMessage, check.Message)

	check = EmergencyPrecheck("shortness of breath and a seizure")
	assert.Equal(t, "shortness of breath", check.Term)

	assert.False(t, EmergencyPrecheck("mild headache").Emergency)
	assert.False(t, EmergencyPrecheck("").Emergency)
}

func TestPolicy_ShouldStop(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name string
		sess SymptomSession
		want bool
	}{
		{"fresh", SymptomSession{Status: StatusActive}, false},
		{"emergency at step zero", SymptomSession{Status: StatusEmergency}, true},
		{"cap reached with low confidence", SymptomSession{Status: StatusActive, CurrentStep: 8, TopConfidence: 0.1}, true},
		{"confident", SymptomSession{Status: StatusActive, CurrentStep: 2, TopConfidence: 0.70}, true},
		{"almost confident", SymptomSession{Status: StatusActive, CurrentStep: 7, TopConfidence: 0.69}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.ShouldStop(&tt.sess))
		})
	}
}
