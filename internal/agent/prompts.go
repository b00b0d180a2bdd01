package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

func questionsPrompt(in Intake) string {
	return fmt.Sprintf(`
You are a medical intake assistant.
Generate %d-%d follow-up triage questions for this user.
Return ONLY valid JSON array, no markdown.

Each item schema:
{
  "id": 1,
  "text": "question text",
  "type": "yesno | text | single_choice",
  "options": ["option 1", "option 2"],
  "ai_generated": true
}

Rules:
- Keep questions concise and practical.
- Ask one thing per question.
- Use yesno for most questions.
- If single_choice, provide 2-4 options.
- Do not repeat questions.
- Include "ai_generated": true in every item.

User profile:
Age: %s
Gender: %s
State: %s
Primary symptom: %s
`, MinQuestions, MaxQuestions, in.ageLabel(), in.Gender, in.State, in.Symptom)
}

func diagnosisPrompt(in Intake, answers []AnswerItem) string {
	lines := make([]string, 0, len(answers))
	for _, a := range answers {
		lines = append(lines, fmt.Sprintf("- Q: %s | A: %s", a.QuestionText, a.Answer))
	}
	return fmt.Sprintf(`
You are a clinical triage assistant.
Analyze user intake and follow-up responses.
Return ONLY valid JSON object, no markdown.

Schema:
{
  "conditions": [
    {
      "name": "Condition",
      "likelihood": "High | Medium | Low",
      "reasoning": "short explanation",
      "specialization": "doctor specialization"
    }
  ],
  "urgency": "Low | Moderate | High",
  "advice": "short actionable guidance",
  "ai_generated": true
}

User profile:
Age: %s
Gender: %s
State: %s
Primary symptom: %s

Follow-up answers:
%s
`, in.ageLabel(), in.Gender, in.State, in.Symptom, strings.Join(lines, "\n"))
}

func adaptivePrompt(in AdaptiveInput) string {
	history, _ := json.Marshal(in.History)
	return fmt.Sprintf(`
You are a medical triage assistant.
Generate the NEXT single screening question based on history.
Return strict JSON only with keys: text, answer_type, options, ai_generated.
answer_type must be "yes_no" or "single_choice".
If "yes_no", options must be [].
If "single_choice", options must contain 2-5 short choices.
Set ai_generated to true.

Initial symptom: %s
Step: %d
Answered history: %s
`, in.Symptom, in.Step, history)
}
