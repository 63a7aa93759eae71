package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIConfig struct {
	APIKey string
	Model  string
}

// OpenAIResponder generates agent utterances with a chat-completion model.
// Structured job details come back through the capture tool on the same
// response, never as a second round trip.
type OpenAIResponder struct {
	client *openai.Client
	model  string
}

const captureToolName = "capture_job_details"

var captureToolParams = json.RawMessage(`{
	"type": "object",
	"properties": {
		"caller_name":   {"type": "string", "description": "The caller's name"},
		"callback_number": {"type": "string", "description": "Phone number to reach the caller"},
		"job_type":      {"type": "string", "description": "Short label for the requested work"},
		"job_details":   {"type": "string", "description": "Free-text description of the job"},
		"timing":        {"type": "string", "description": "When the caller wants the work done"},
		"address":       {"type": "string", "description": "Job site address if given"}
	}
}`)

func NewOpenAIResponder(cfg OpenAIConfig) *OpenAIResponder {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIResponder{client: openai.NewClient(cfg.APIKey), model: model}
}

func (r *OpenAIResponder) Respond(ctx context.Context, p Prompt) (Reply, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(p.Turns)+2)
	if strings.TrimSpace(p.System) != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: p.System,
		})
	}
	for _, turn := range p.Turns {
		role := openai.ChatMessageRoleUser
		if turn.Role == RoleAgent {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}
	if strings.TrimSpace(p.UserText) != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: p.UserText,
		})
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Messages:    messages,
		Temperature: 0.4,
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        captureToolName,
				Description: "Record structured details about the caller's job request as they come up.",
				Parameters:  captureToolParams,
			},
		}},
	})
	if err != nil {
		status := 0
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			status = apiErr.HTTPStatusCode
		}
		return Reply{}, &GenerationError{Status: status, Detail: err.Error()}
	}
	if len(resp.Choices) == 0 {
		return Reply{}, &GenerationError{Detail: "empty completion response"}
	}

	choice := resp.Choices[0]
	reply := Reply{Text: strings.TrimSpace(choice.Message.Content)}
	for _, tc := range choice.Message.ToolCalls {
		if tc.Function.Name != captureToolName {
			continue
		}
		entities, err := parseCaptureArguments(tc.Function.Arguments)
		if err != nil {
			continue
		}
		if reply.Entities == nil {
			reply.Entities = make(map[string]string, len(entities))
		}
		for k, v := range entities {
			reply.Entities[k] = v
		}
	}
	return reply, nil
}

func parseCaptureArguments(raw string) (map[string]string, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		switch t := v.(type) {
		case string:
			if strings.TrimSpace(t) != "" {
				out[k] = t
			}
		case float64:
			out[k] = fmt.Sprintf("%v", t)
		}
	}
	return out, nil
}
