package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

type GPTResponse struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

type GPTConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	MaxTokens     int
	Temperature   float64
	MinConfidence float64
	Timeout       time.Duration
}

// GPTClassifier asks an OpenAI chat model to pick a category and falls
// back to keyword matching whenever the model is unavailable or unsure.
type GPTClassifier struct {
	client   *openai.Client
	cfg      GPTConfig
	fallback Classifier
	logger   *zap.Logger
}

func NewGPTClassifier(cfg GPTConfig, fallback Classifier, logger *zap.Logger) *GPTClassifier {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &GPTClassifier{
		client:   openai.NewClientWithConfig(clientConfig),
		cfg:      cfg,
		fallback: fallback,
		logger:   logger,
	}
}

func (c *GPTClassifier) Suggest(ctx context.Context, description string, categories []string) string {
	if strings.TrimSpace(description) == "" || len(categories) == 0 {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	prompt := fmt.Sprintf(`Classify the following expense into exactly one of these categories: %s.

Return the response as a JSON object with this structure:
{
    "category": "one of the categories above, or an empty string if none fits",
    "confidence": 0.0
}

Expense: %s`, strings.Join(categories, ", "), description)

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.cfg.Model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   c.cfg.MaxTokens,
			Temperature: float32(c.cfg.Temperature),
		},
	)
	if err != nil {
		c.logger.Error("Failed to get GPT response", zap.Error(err))
		return c.fallbackSuggestion(ctx, description, categories)
	}
	if len(resp.Choices) == 0 {
		c.logger.Warn("GPT response has no choices")
		return c.fallbackSuggestion(ctx, description, categories)
	}

	var gptResponse GPTResponse
	response := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(response), &gptResponse); err != nil {
		c.logger.Error("Failed to parse GPT response",
			zap.Error(err),
			zap.String("response", response))
		return c.fallbackSuggestion(ctx, description, categories)
	}

	category := match(gptResponse.Category, categories)
	if category == "" || gptResponse.Confidence < c.cfg.MinConfidence {
		c.logger.Debug("GPT suggestion rejected",
			zap.String("category", gptResponse.Category),
			zap.Float64("confidence", gptResponse.Confidence))
		return c.fallbackSuggestion(ctx, description, categories)
	}

	return category
}

func (c *GPTClassifier) fallbackSuggestion(ctx context.Context, description string, categories []string) string {
	if c.fallback == nil {
		return ""
	}
	return c.fallback.Suggest(ctx, description, categories)
}
