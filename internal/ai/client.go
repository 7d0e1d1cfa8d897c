package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ilhamafian/pa-agent-be/internal/models"
)

// ErrTimeout is returned when the language model call exceeds its latency
// budget. The dispatch loop recovers by asking the user to retry.
var ErrTimeout = errors.New("language model call timed out")

type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func New(apiKey, baseURL, model string, timeout time.Duration) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		client:  openai.NewClientWithConfig(config),
		model:   model,
		timeout: timeout,
	}
}

// ToolSchema describes one registry tool to the model.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// PendingContext is attached when the user has an unresolved confirmation.
type PendingContext struct {
	Tool   string
	Prompt string
}

// ClassifyRequest carries everything the router needs for one message.
type ClassifyRequest struct {
	Message  string
	Pending  *PendingContext
	History  []models.Turn
	Tools    []ToolSchema
	Now      time.Time
	Timezone string
}

// Output kinds.
const (
	KindToolCall     = "tool_call"
	KindConfirmation = "confirmation"
	KindReply        = "reply"
)

// Confirmation answers.
const (
	AnswerYes       = "yes"
	AnswerNo        = "no"
	AnswerAmbiguous = "ambiguous"
)

// RouterOutput is exactly one of a tool call, a confirmation answer, or a
// plain reply, discriminated by Kind.
type RouterOutput struct {
	Kind         string          `json:"kind"`
	Tool         string          `json:"tool"`
	Args         json.RawMessage `json:"args"`
	Confirmation string          `json:"confirmation"`
	Reply        string          `json:"reply"`
	Confidence   float64         `json:"confidence"`
	RawResponse  string          `json:"-"`
}

const systemPromptTemplate = `You are the intent router for a personal assistant. Map the user's message to exactly one output.

Current time: %s (timezone: %s)

Available tools:
%s

Output rules:
1. kind = "tool_call": the message requests one of the tools above. Set tool to the tool name and args to an object matching its parameter schema. Leave time expressions ("in 3 hours", "tomorrow at 9am") verbatim in the designated string fields; the backend normalizes them.
2. kind = "reply": no tool applies. Set reply to a short helpful answer or clarifying question.
3. kind = "confirmation": only valid while a confirmation is pending (see below). Set confirmation to "yes", "no", or "ambiguous".
4. confidence is your certainty in the chosen output, 0 to 1.
5. For task creation, infer priority high/medium/low from urgency words in the message; use medium when unclear.`

const pendingPromptTemplate = `
A confirmation is currently pending for tool %q ("%s").
First decide whether the message answers it:
- clear agreement (yes, sure, go ahead, ok) => kind "confirmation", confirmation "yes"
- clear refusal (no, cancel, don't, nevermind) => kind "confirmation", confirmation "no"
- anything else => treat the message as a fresh request: if it maps confidently to a tool, output that tool_call; if it is unrelated chatter, output confirmation "ambiguous".`

var outputSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"kind": {
			"type": "string",
			"enum": ["tool_call", "confirmation", "reply"],
			"description": "The discriminator for the output"
		},
		"tool": {
			"type": "string",
			"description": "Tool name when kind is tool_call, otherwise empty"
		},
		"args": {
			"type": "object",
			"additionalProperties": true,
			"description": "Arguments for the tool call, matching its parameter schema"
		},
		"confirmation": {
			"type": "string",
			"enum": ["", "yes", "no", "ambiguous"],
			"description": "Answer classification when kind is confirmation"
		},
		"reply": {
			"type": "string",
			"description": "Assistant text when kind is reply"
		},
		"confidence": {
			"type": "number",
			"minimum": 0,
			"maximum": 1,
			"description": "Confidence in the chosen output"
		}
	},
	"required": ["kind", "confidence"],
	"additionalProperties": false
}`)

func buildSystemPrompt(req ClassifyRequest) string {
	var tools strings.Builder
	for _, t := range req.Tools {
		fmt.Fprintf(&tools, "- %s: %s\n  parameters: %s\n", t.Name, t.Description, string(t.Parameters))
	}

	tz := req.Timezone
	if tz == "" {
		tz = "UTC"
	}
	prompt := fmt.Sprintf(systemPromptTemplate,
		req.Now.Format("2006-01-02 15:04 (Monday)"), tz, tools.String())

	if req.Pending != nil {
		prompt += fmt.Sprintf(pendingPromptTemplate, req.Pending.Tool, req.Pending.Prompt)
	}
	return prompt
}

// Classify maps one inbound message, with pending context and recent turns,
// to a single router output.
func (c *Client) Classify(ctx context.Context, req ClassifyRequest) (*RouterOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: buildSystemPrompt(req),
		},
	}
	for _, turn := range req.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Message,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "router_output",
				Schema: outputSchema,
				Strict: true,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("failed to call AI API: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from AI")
	}

	content := resp.Choices[0].Message.Content
	out := &RouterOutput{RawResponse: content}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}

	return out, nil
}
