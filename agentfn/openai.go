package agentfn

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mail-swarm/mail/action"
	"github.com/mail-swarm/mail/mailtool"
	"github.com/mail-swarm/mail/protocol"
	"github.com/mail-swarm/mail/runtime"
)

// OpenAIConfig configures an OpenAI-backed runtime.AgentFn.
type OpenAIConfig struct {
	APIKey       string
	Model        openai.ChatModel
	SystemPrompt string
	Actions      *action.Registry
	AgentActions []string
}

// NewOpenAIAgentFn mirrors NewClaudeAgentFn for the Chat Completions API,
// grounded in the teacher's llm.OpenAIProvider (llm/providers/openai.go)
// request/response shape but wired against the real openai-go SDK.
func NewOpenAIAgentFn(cfg OpenAIConfig) runtime.AgentFn {
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	client := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	specs := BuildToolSpecs(cfg.AgentActions, cfg.Actions)
	tools := make([]openai.ChatCompletionToolParam, 0, len(specs))
	for _, s := range specs {
		tools = append(tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        s.Name,
				Description: openai.String(s.Description),
				Parameters:  openai.FunctionParameters(s.Schema),
			},
		})
	}

	return func(ctx context.Context, history []protocol.HistoryEntry) (*string, []mailtool.Call, error) {
		messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
		if cfg.SystemPrompt != "" {
			messages = append(messages, openai.SystemMessage(cfg.SystemPrompt))
		}
		for _, h := range history {
			switch h.Role {
			case protocol.RoleUser, protocol.RoleSystem:
				messages = append(messages, openai.UserMessage(h.Content))
			case protocol.RoleAssistant:
				messages = append(messages, openai.AssistantMessage(h.Content))
			case protocol.RoleTool:
				messages = append(messages, openai.UserMessage(h.Content))
			}
		}

		resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:    cfg.Model,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("agentfn: openai request failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, nil, fmt.Errorf("agentfn: openai returned no choices")
		}

		msg := resp.Choices[0].Message
		var text *string
		if msg.Content != "" {
			c := msg.Content
			text = &c
		}
		calls := make([]mailtool.Call, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			var args map[string]interface{}
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				args = map[string]interface{}{}
			}
			calls = append(calls, mailtool.Call{
				ID:   orFallback(tc.ID, uuid.NewString()),
				Name: tc.Function.Name,
				Args: args,
			})
		}
		return text, calls, nil
	}
}
