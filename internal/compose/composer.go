// Package compose turns a bounded conversation context into a candidate
// reply via the external generation collaborator. Composition has no side
// effects; failures are returned to the caller, which must not advance state.
package compose

import (
	"context"
	"fmt"
	"strings"

	"github.com/zezere/email-bot/internal/database"
)

// Role identifies who produced a turn in the generation request.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one prior exchange handed to the generator.
type Turn struct {
	Role    Role
	Content string
}

// Request is the provider-agnostic generation input.
type Request struct {
	System string
	Turns  []Turn
}

// Generator is the external text generation collaborator.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

const replySystemPrompt = `You are an accountability partner that helps users achieve their goals through email.
Your responses should be:
1. Encouraging and supportive
2. Focused on the user's goals and progress
3. Professional but friendly
4. Brief and concise
5. Action-oriented when appropriate

If this is the user's first message, welcome them and acknowledge their goal.
If it's an update, provide encouragement and ask about next steps or challenges.`

const reminderSystemPrompt = `You are an accountability partner that helps users achieve their goals through email.
The user agreed to check in but has not written yet. Send a short, friendly
nudge referring to their goal. Do not scold; one or two sentences.`

// Composer builds generation requests from stored conversation context.
type Composer struct {
	generator Generator
}

// NewComposer wraps a generator.
func NewComposer(generator Generator) (*Composer, error) {
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	return &Composer{generator: generator}, nil
}

// Compose produces a reply to the latest user message in the context window.
func (c *Composer) Compose(ctx context.Context, conv database.Context) (string, error) {
	return c.generate(ctx, conv, replySystemPrompt)
}

// ComposeReminder produces a check-in nudge for a conversation that has gone
// quiet past its schedule.
func (c *Composer) ComposeReminder(ctx context.Context, conv database.Context) (string, error) {
	return c.generate(ctx, conv, reminderSystemPrompt)
}

func (c *Composer) generate(ctx context.Context, conv database.Context, system string) (string, error) {
	if summary := strings.TrimSpace(conv.Summary); summary != "" {
		system = system + "\n\nThe user's stated goal: " + summary
	}

	// Mirror the language of the user's latest message.
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].Direction != database.DirectionInbound {
			continue
		}
		if instruction := languageInstruction(conv.Messages[i].Body); instruction != "" {
			system = system + "\n\n" + instruction
		}
		break
	}

	req := Request{System: system}
	for _, msg := range conv.Messages {
		role := RoleUser
		if msg.Direction == database.DirectionOutbound {
			role = RoleAssistant
		}
		req.Turns = append(req.Turns, Turn{Role: role, Content: msg.Body})
	}

	text, err := c.generator.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("generator returned empty reply")
	}
	return text, nil
}
