package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/buzzbuster/antispam/internal/utils"
)

// Classifier is an implementation of the core Classifier interface using
// OpenAI chat completions with a strict boolean JSON schema, so the model can
// only ever answer spam or not-spam.
type Classifier struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	systemFormat  string
}

// verdictResponse is the schema-constrained model output.
type verdictResponse struct {
	Result bool `json:"result"`
}

var verdictSchema = json.RawMessage(`{
	"type": "object",
	"properties": {"result": {"type": "boolean"}},
	"required": ["result"],
	"additionalProperties": false
}`)

// NewClassifier creates a new OpenAI classifier.
func NewClassifier(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *Classifier {
	client := openai.NewClient(apiKey)

	return &Classifier{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
		systemFormat: `Is the user's message spam? Important markers of spam messages: %s
Respond with a JSON object {"result": true} when the message is spam and {"result": false} otherwise.`,
	}
}

// Classify asks the model whether the message body is spam given the group's
// instructions.
func (c *Classifier) Classify(ctx context.Context, body, instructions string) (bool, error) {
	truncated := c.textProcessor.ProcessText(body, c.maxBodySize)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf(c.systemFormat, instructions),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: truncated,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "verdict",
				Schema: verdictSchema,
				Strict: true,
			},
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return false, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return false, fmt.Errorf("empty response from OpenAI")
	}

	responseText := resp.Choices[0].Message.Content
	c.logger.Debug("OpenAI response", zap.String("content", responseText))

	var verdict verdictResponse
	if err := json.Unmarshal([]byte(responseText), &verdict); err != nil {
		return false, fmt.Errorf("failed to parse OpenAI response as JSON: %w", err)
	}

	return verdict.Result, nil
}
