package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/buzzbuster/antispam/internal/utils"
)

// Classifier is an implementation of the core Classifier interface using
// Amazon Bedrock.
type Classifier struct {
	client        *bedrockruntime.Client
	modelID       string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	promptFormat  string
}

type verdictResponse struct {
	Result bool `json:"result"`
}

// claudeRequest is the Anthropic text-completion payload Bedrock expects.
type claudeRequest struct {
	Prompt            string   `json:"prompt"`
	MaxTokensToSample int      `json:"max_tokens_to_sample"`
	Temperature       float32  `json:"temperature"`
	TopP              float32  `json:"top_p"`
	StopSequences     []string `json:"stop_sequences,omitempty"`
}

type claudeResponse struct {
	Completion string `json:"completion"`
}

// NewClassifier creates a new Bedrock classifier.
func NewClassifier(
	client *bedrockruntime.Client,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *Classifier {
	return &Classifier{
		client:        client,
		modelID:       modelID,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
		promptFormat: `Is the user's message spam? Important markers of spam messages: %s
Respond with a JSON object {"result": true} when the message is spam and {"result": false} otherwise.
Respond only with the JSON object and nothing else.

Message:
%s`,
	}
}

// Classify asks the model whether the message body is spam given the group's
// instructions.
func (c *Classifier) Classify(ctx context.Context, body, instructions string) (bool, error) {
	truncated := c.textProcessor.ProcessText(body, c.maxBodySize)
	prompt := fmt.Sprintf(c.promptFormat, instructions, truncated)

	reqBody, err := json.Marshal(claudeRequest{
		Prompt:            fmt.Sprintf("\n\nHuman: %s\n\nAssistant:", prompt),
		MaxTokensToSample: c.maxTokens,
		Temperature:       c.temperature,
		TopP:              c.topP,
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal Bedrock request: %w", err)
	}

	output, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        reqBody,
	})
	if err != nil {
		return false, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	var resp claudeResponse
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return false, fmt.Errorf("failed to parse Bedrock response: %w", err)
	}

	responseText := strings.TrimSpace(resp.Completion)
	c.logger.Debug("Bedrock response", zap.String("content", responseText))

	// The completion may surround the JSON with prose; extract the object.
	jsonStart := strings.Index(responseText, "{")
	jsonEnd := strings.LastIndex(responseText, "}")
	if jsonStart < 0 || jsonEnd <= jsonStart {
		return false, fmt.Errorf("failed to extract JSON from Bedrock response")
	}

	var verdict verdictResponse
	if err := json.Unmarshal([]byte(responseText[jsonStart:jsonEnd+1]), &verdict); err != nil {
		return false, fmt.Errorf("failed to parse Bedrock verdict as JSON: %w", err)
	}

	return verdict.Result, nil
}
