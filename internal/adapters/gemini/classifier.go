package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/buzzbuster/antispam/internal/utils"
)

// Classifier is an implementation of the core Classifier interface using
// Google Gemini.
type Classifier struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	promptFormat  string
}

type verdictResponse struct {
	Result bool `json:"result"`
}

// NewClassifier creates a new Gemini classifier.
func NewClassifier(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*Classifier, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"result": {Type: genai.TypeBoolean},
		},
		Required: []string{"result"},
	}

	return &Classifier{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
		promptFormat: `Is the user's message spam? Important markers of spam messages: %s
Respond with a JSON object {"result": true} when the message is spam and {"result": false} otherwise.

Message:
%s`,
	}, nil
}

// Close closes the Gemini client.
func (c *Classifier) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Classify asks the model whether the message body is spam given the group's
// instructions.
func (c *Classifier) Classify(ctx context.Context, body, instructions string) (bool, error) {
	truncated := c.textProcessor.ProcessText(body, c.maxBodySize)
	prompt := fmt.Sprintf(c.promptFormat, instructions, truncated)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return false, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return false, fmt.Errorf("empty response from Gemini")
	}

	responseText := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])
	c.logger.Debug("Gemini response", zap.String("content", responseText))

	var verdict verdictResponse
	if err := json.Unmarshal([]byte(responseText), &verdict); err != nil {
		return false, fmt.Errorf("failed to parse Gemini response as JSON: %w", err)
	}

	return verdict.Result, nil
}
