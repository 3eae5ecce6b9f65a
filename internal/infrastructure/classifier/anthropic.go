// Package classifier provides the text classification and embedding
// capabilities used by the classification pipeline.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/civictrack/civictrack/internal/application/classification"
	"github.com/civictrack/civictrack/internal/shared/logger"
)

const (
	DefaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 512
)

const systemPrompt = `You label citizen reports about municipal infrastructure.
Answer with a single JSON object and nothing else:
{"label": "<one of the allowed labels>", "scores": {"<label>": <probability>, ...}}
Scores are probabilities between 0 and 1 for every allowed label and sum to 1.`

// AnthropicClassifier answers closed-label questions with a Claude model.
type AnthropicClassifier struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	logger    logger.Interface
}

func NewAnthropicClassifier(apiKey, model string, logger logger.Interface, opts ...option.RequestOption) *AnthropicClassifier {
	if model == "" {
		model = DefaultModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicClassifier{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: defaultMaxTokens,
		logger:    logger,
	}
}

func (c *AnthropicClassifier) Model() string {
	return c.model
}

func (c *AnthropicClassifier) Classify(ctx context.Context, text string, labels []string) (*classification.Prediction, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels to classify against")
	}

	userPrompt := fmt.Sprintf("Allowed labels: %s\n\nReport:\n%s", strings.Join(labels, ", "), text)
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic classify request failed: %w", err)
	}

	for _, block := range message.Content {
		if block.Type != "text" {
			continue
		}
		c.logger.Debugw("classifier response",
			"model", c.model,
			"tokens_in", message.Usage.InputTokens,
			"tokens_out", message.Usage.OutputTokens,
		)
		return ParsePrediction(block.Text, labels)
	}
	return nil, fmt.Errorf("no text content in classifier response")
}

type rawPrediction struct {
	Label      string             `json:"label"`
	Confidence *float64           `json:"confidence"`
	Scores     map[string]float64 `json:"scores"`
}

// ParsePrediction reads the model's JSON answer. Scores are clamped to
// [0,1] and normalized when they sum above 1; the confidence is the score
// of the chosen label. A label outside labels is returned as given.
func ParsePrediction(text string, labels []string) (*classification.Prediction, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("classifier response has no JSON object")
	}

	var raw rawPrediction
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode classifier response: %w", err)
	}
	label := strings.ToLower(strings.TrimSpace(raw.Label))
	if label == "" {
		return nil, fmt.Errorf("classifier response has no label")
	}

	scores := make(map[string]float64, len(labels))
	var total float64
	for _, l := range labels {
		s := clamp01(raw.Scores[l])
		scores[l] = s
		total += s
	}
	if total > 1 {
		for l := range scores {
			scores[l] /= total
		}
	}

	confidence, ok := scores[label]
	if raw.Confidence != nil {
		confidence = clamp01(*raw.Confidence)
	} else if !ok {
		confidence = 0
	}

	return &classification.Prediction{
		Label:      label,
		Confidence: confidence,
		Scores:     scores,
	}, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
