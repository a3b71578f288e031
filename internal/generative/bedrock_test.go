package generative

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInvoker struct {
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
}

func (f *fakeInvoker) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestBedrockClient_Generate(t *testing.T) {
	invoker := &fakeInvoker{body: `{"content":[{"type":"text","text":"Recycle "},{"type":"text","text":"5 loads."}],"stop_reason":"end_turn"}`}
	client := NewBedrockClient(invoker, "", 0.5)

	resp, err := client.Generate(context.Background(), Request{Prompt: "hello", MaxTokens: 200})
	require.NoError(t, err)
	assert.Equal(t, Response{Success: true, Content: "Recycle 5 loads."}, resp)

	require.NotNil(t, invoker.input)
	assert.Equal(t, DefaultBedrockModel, *invoker.input.ModelId)

	var sent bedrockRequest
	require.NoError(t, json.Unmarshal(invoker.input.Body, &sent))
	assert.Equal(t, "bedrock-2023-05-31", sent.AnthropicVersion)
	assert.Equal(t, 200, sent.MaxTokens)
	assert.Equal(t, "hello", sent.Messages[0].Content[0].Text)
}

func TestBedrockClient_InvokeError(t *testing.T) {
	client := NewBedrockClient(&fakeInvoker{err: errors.New("throttled")}, "model", 0)

	_, err := client.Generate(context.Background(), Request{Prompt: "hello"})
	assert.ErrorContains(t, err, "throttled")
}
