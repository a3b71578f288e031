package generative

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// DefaultBedrockModel is used when no model id is configured
const DefaultBedrockModel = "anthropic.claude-3-haiku-20240307-v1:0"

// BedrockInvoker is the part of the Bedrock runtime client we use
type BedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type bedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type bedrockMessage struct {
	Role    string                `json:"role"`
	Content []bedrockContentBlock `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature,omitempty"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// BedrockClient generates text with an Anthropic model on AWS Bedrock
type BedrockClient struct {
	client      BedrockInvoker
	modelID     string
	temperature float64
}

// NewBedrockClient wraps an existing invoker
func NewBedrockClient(client BedrockInvoker, modelID string, temperature float64) *BedrockClient {
	if modelID == "" {
		modelID = DefaultBedrockModel
	}
	return &BedrockClient{client: client, modelID: modelID, temperature: temperature}
}

// NewBedrockClientFromEnv loads AWS credentials from the default chain
func NewBedrockClientFromEnv(ctx context.Context, region, modelID string, temperature float64) (*BedrockClient, error) {
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewBedrockClient(bedrockruntime.NewFromConfig(cfg), modelID, temperature), nil
}

// Generate sends prompt as a single user message
func (b *BedrockClient) Generate(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        req.MaxTokens,
		Messages: []bedrockMessage{{
			Role:    "user",
			Content: []bedrockContentBlock{{Type: "text", Text: req.Prompt}},
		}},
		Temperature: b.temperature,
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal bedrock request: %w", err)
	}

	output, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return Response{}, fmt.Errorf("bedrock invoke: %w", err)
	}

	var parsed bedrockResponse
	if err := json.Unmarshal(output.Body, &parsed); err != nil {
		return Response{}, fmt.Errorf("decode bedrock response: %w", err)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return Response{Success: true, Content: text.String()}, nil
}
