package flow

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
)

// mockGenAIClient is a canned generation client for tests. It records the
// last message set it received and returns queued responses in order,
// repeating the last one when the queue runs dry.
type mockGenAIClient struct {
	responses    []string
	err          error
	calls        int
	lastMessages []openai.ChatCompletionMessageParamUnion
}

func newMockGenAIClient(responses ...string) *mockGenAIClient {
	return &mockGenAIClient{responses: responses}
}

func (m *mockGenAIClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return m.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userPrompt),
	})
}

func (m *mockGenAIClient) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	m.calls++
	m.lastMessages = messages
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", fmt.Errorf("mock has no responses queued")
	}
	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return resp, nil
}
