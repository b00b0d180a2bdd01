package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"healthsync/internal/config"
)

// TextGenerator sends one prompt to a generative-text endpoint and returns
// the raw response text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type geminiGenerator struct {
	http   *resty.Client
	apiKey string
	model  string
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func NewGeminiGenerator(cfg config.AIConfig) TextGenerator {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout()).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &geminiGenerator{http: client, apiKey: strings.TrimSpace(cfg.APIKey), model: cfg.Model}
}

func (g *geminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.apiKey == "" {
		return "", ErrNoAPIKey
	}

	resp, err := g.http.R().
		SetContext(ctx).
		SetQueryParam("key", g.apiKey).
		SetPathParam("model", g.model).
		SetBody(geminiRequest{Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}}}).
		Post("/models/{model}:generateContent")
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("gemini %s: %s", resp.Status(), resp.String())
	}

	// Decoded by hand: resty only fills SetResult for JSON content types.
	var out geminiResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("gemini response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return "", ErrNoCandidates
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

type Options struct {
	Retries    int
	RetryDelay time.Duration
	Cooldown   time.Duration
	Now        func() time.Time
}

func OptionsFromConfig(cfg config.AIConfig) Options {
	return Options{
		Retries:    cfg.Retries,
		RetryDelay: cfg.RetryDelay(),
		Cooldown:   cfg.Cooldown(),
	}
}

// Client runs the three structured generation calls on top of a TextGenerator.
type Client struct {
	gen        TextGenerator
	retries    int
	retryDelay time.Duration
	cooldown   *Cooldown
	log        *zap.Logger
}

func NewClient(gen TextGenerator, opts Options, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		gen:        gen,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		cooldown:   NewCooldown(opts.Cooldown, opts.Now),
		log:        log,
	}
}

func (c *Client) Cooldown() *Cooldown { return c.cooldown }

// generateWithRetry retries transport failures with a linear backoff
// (delay * attempt) and classifies the last error.
func (c *Client) generateWithRetry(ctx context.Context, op, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		text, err := c.gen.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if errors.Is(err, ErrNoAPIKey) || ctx.Err() != nil {
			break
		}
		if attempt < c.retries {
			wait := c.retryDelay * time.Duration(attempt+1)
			c.log.Warn("AI request retrying",
				zap.String("op", op),
				zap.Int("attempt", attempt+1),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return "", classify(ctx.Err())
			case <-time.After(wait):
			}
		}
	}
	ge := classify(lastErr)
	c.log.Error("AI request failed", zap.String("op", op), zap.String("kind", string(ge.Kind)), zap.Error(lastErr))
	return "", ge
}

func (c *Client) GenerateQuestions(ctx context.Context, in Intake) ([]QuestionItem, error) {
	text, err := c.generateWithRetry(ctx, "questions", questionsPrompt(in))
	if err != nil {
		return nil, err
	}
	questions, err := ParseQuestions(text)
	if err != nil {
		c.log.Warn("AI questions rejected", zap.Error(err))
		return nil, err
	}
	return questions, nil
}

func (c *Client) GenerateDiagnosis(ctx context.Context, in Intake, answers []AnswerItem) (*Diagnosis, error) {
	text, err := c.generateWithRetry(ctx, "diagnosis", diagnosisPrompt(in, answers))
	if err != nil {
		return nil, err
	}
	d, err := ParseDiagnosis(text)
	if err != nil {
		c.log.Warn("AI diagnosis rejected", zap.Error(err))
		return nil, err
	}
	return d, nil
}

// GenerateAdaptiveQuestion never returns an error: ok is false whenever no
// usable question came back. Any failure other than missing credentials
// starts the cooldown.
func (c *Client) GenerateAdaptiveQuestion(ctx context.Context, in AdaptiveInput) (AdaptiveQuestion, bool) {
	if !c.cooldown.Allow() {
		c.log.Debug("adaptive question skipped during cooldown", zap.Time("until", c.cooldown.Until()))
		return AdaptiveQuestion{}, false
	}

	text, err := c.gen.Generate(ctx, adaptivePrompt(in))
	if err != nil {
		if !errors.Is(err, ErrNoAPIKey) {
			c.cooldown.Trip()
			c.log.Warn("adaptive question generation failed", zap.Error(err))
		}
		return AdaptiveQuestion{}, false
	}

	q, err := ParseAdaptive(text)
	if err != nil {
		c.cooldown.Trip()
		c.log.Warn("adaptive question rejected", zap.Error(err))
		return AdaptiveQuestion{}, false
	}
	return q, true
}
