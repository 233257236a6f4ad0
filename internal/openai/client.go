// Package openai adapts the OpenAI API to the core's classifier and
// generator interfaces. The orchestration logic has no dependency on any
// provider request/response shape; swapping providers means replacing only
// this adapter.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/zezere/email-bot/internal/compose"
	"github.com/zezere/email-bot/internal/moderation"
)

// Client wraps the OpenAI client for moderation classification and reply
// generation.
type Client struct {
	api      *openai.Client
	gptModel string
	timeout  time.Duration
}

// NewClient creates an adapter using the given API key. An empty model
// selects GPT-4o mini.
func NewClient(apiKey, model string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not configured")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{api: openai.NewClient(apiKey), gptModel: model, timeout: timeout}, nil
}

// Classify runs the text through the moderation endpoint and reduces the
// per-category scores to a single severity score plus the worst category
// label.
func (c *Client) Classify(ctx context.Context, text string) (moderation.Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: openai.ModerationTextLatest,
	})
	if err != nil {
		return moderation.Classification{}, fmt.Errorf("moderation request: %w", err)
	}
	if len(resp.Results) == 0 {
		return moderation.Classification{}, fmt.Errorf("moderation returned no results")
	}
	result := resp.Results[0]

	categories := []struct {
		name  string
		score float32
	}{
		{"hate", result.CategoryScores.Hate},
		{"hate/threatening", result.CategoryScores.HateThreatening},
		{"harassment", result.CategoryScores.Harassment},
		{"harassment/threatening", result.CategoryScores.HarassmentThreatening},
		{"self-harm", result.CategoryScores.SelfHarm},
		{"self-harm/intent", result.CategoryScores.SelfHarmIntent},
		{"self-harm/instructions", result.CategoryScores.SelfHarmInstructions},
		{"sexual", result.CategoryScores.Sexual},
		{"sexual/minors", result.CategoryScores.SexualMinors},
		{"violence", result.CategoryScores.Violence},
		{"violence/graphic", result.CategoryScores.ViolenceGraphic},
	}

	classification := moderation.Classification{Label: "clean"}
	for _, cat := range categories {
		if score := float64(cat.score); score > classification.Score {
			classification.Score = score
			classification.Label = cat.name
		}
	}
	if result.Flagged {
		classification.Label = "flagged: " + classification.Label
	}
	return classification, nil
}

// Generate runs a chat completion over the composed turns.
func (c *Client) Generate(ctx context.Context, req compose.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: req.System},
	}
	for _, turn := range req.Turns {
		role := openai.ChatMessageRoleUser
		if turn.Role == compose.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.gptModel,
		Messages:    messages,
		MaxTokens:   500,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}
