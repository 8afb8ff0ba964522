package agentfn

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/mail-swarm/mail/action"
	"github.com/mail-swarm/mail/mailtool"
	"github.com/mail-swarm/mail/protocol"
	"github.com/mail-swarm/mail/runtime"
)

// ClaudeConfig configures a Claude-backed runtime.AgentFn.
type ClaudeConfig struct {
	APIKey       string
	Model        anthropic.Model
	MaxTokens    int64
	SystemPrompt string
	Actions      *action.Registry
	AgentActions []string
}

// NewClaudeAgentFn builds a runtime.AgentFn that renders an agent's history
// as a single Claude Messages API call, offering the full MAIL tool catalog
// plus the agent's declared actions as tool_use tools, and translating
// tool_use blocks back into mailtool.Call. Grounded in the teacher's
// llm.ClaudeProvider (llm/providers/claude.go) request/response shape, but
// wired against the real Anthropic SDK rather than a hand-rolled HTTP call.
func NewClaudeAgentFn(cfg ClaudeConfig) runtime.AgentFn {
	if cfg.Model == "" {
		cfg.Model = anthropic.ModelClaude3_5HaikuLatest
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	specs := BuildToolSpecs(cfg.AgentActions, cfg.Actions)
	tools := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, s := range specs {
		tools = append(tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        s.Name,
				Description: anthropic.String(s.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: s.Schema["properties"],
				},
			},
		})
	}

	return func(ctx context.Context, history []protocol.HistoryEntry) (*string, []mailtool.Call, error) {
		messages := make([]anthropic.MessageParam, 0, len(history))
		for _, h := range history {
			switch h.Role {
			case protocol.RoleUser, protocol.RoleSystem:
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(h.Content)))
			case protocol.RoleAssistant:
				messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(h.Content)))
			case protocol.RoleTool:
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(h.Content)))
			}
		}

		resp, err := client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			System:    []anthropic.TextBlockParam{{Text: cfg.SystemPrompt}},
			Messages:  messages,
			Tools:     tools,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("agentfn: claude request failed: %w", err)
		}

		var text *string
		var calls []mailtool.Call
		for _, block := range resp.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				t := variant.Text
				text = &t
			case anthropic.ToolUseBlock:
				var args map[string]interface{}
				if err := json.Unmarshal(variant.Input, &args); err != nil {
					args = map[string]interface{}{}
				}
				calls = append(calls, mailtool.Call{
					ID:   orFallback(variant.ID, uuid.NewString()),
					Name: variant.Name,
					Args: args,
				})
			}
		}
		return text, calls, nil
	}
}

func orFallback(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
