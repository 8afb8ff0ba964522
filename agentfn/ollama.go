package agentfn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/mail-swarm/mail/mailtool"
	"github.com/mail-swarm/mail/protocol"
	"github.com/mail-swarm/mail/runtime"
)

// toolCallFence matches a fenced ```tool_call ... ``` block containing a
// single JSON object with "name" and "arguments" keys — the plain-text
// convention NewOllamaAgentFn's system prompt asks the model to follow in
// lieu of native tool-use support.
var toolCallFence = regexp.MustCompile("(?s)```tool_call\\s*(\\{.*?\\})\\s*```")

// toolCallInstructions is appended to every Ollama agent's system prompt so
// the model knows the plain-text convention extractFencedToolCalls expects.
const toolCallInstructions = "\n\nTo call a tool, emit a fenced block of the exact form:\n```tool_call\n{\"name\": \"tool_name\", \"arguments\": {...}}\n```\nOne block per call. Plain text outside the block is your message to the recipient."

// extractFencedToolCalls parses every ```tool_call``` block out of text and
// returns them as mailtool.Call values; malformed blocks are skipped rather
// than failing the whole turn, since one bad block shouldn't discard an
// otherwise usable response.
func extractFencedToolCalls(text string) []mailtool.Call {
	matches := toolCallFence.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	calls := make([]mailtool.Call, 0, len(matches))
	for _, m := range matches {
		var parsed struct {
			Name      string                 `json:"name"`
			Arguments map[string]interface{} `json:"arguments"`
		}
		if err := json.Unmarshal([]byte(m[1]), &parsed); err != nil || parsed.Name == "" {
			continue
		}
		calls = append(calls, mailtool.Call{ID: uuid.NewString(), Name: parsed.Name, Args: parsed.Arguments})
	}
	return calls
}

// OllamaConfig configures an Ollama-backed runtime.AgentFn. There is no Go
// SDK for Ollama in the retrieved corpus, so this adapter talks to its
// /api/chat endpoint directly with net/http, grounded in the teacher's
// OllamaProvider (llm/providers/ollama.go) request/response shape.
type OllamaConfig struct {
	BaseURL      string // default http://localhost:11434
	Model        string // default llama3.2
	SystemPrompt string
	HTTPClient   *http.Client
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
	Error   string            `json:"error,omitempty"`
}

// NewOllamaAgentFn builds a runtime.AgentFn that renders an agent's history
// as a single non-streaming /api/chat call. Ollama's chat API has no native
// function-calling support (per the teacher's GetCapabilities:
// FunctionCalling: false), so this adapter asks the model to emit MAIL tool
// calls as a trailing fenced JSON block and parses that back into
// mailtool.Call — a plain-text convention rather than a provider feature,
// appropriate for local models that predate tool-use training.
func NewOllamaAgentFn(cfg OllamaConfig) runtime.AgentFn {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "llama3.2"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	system := cfg.SystemPrompt + toolCallInstructions

	return func(ctx context.Context, history []protocol.HistoryEntry) (*string, []mailtool.Call, error) {
		messages := make([]ollamaChatMessage, 0, len(history)+1)
		messages = append(messages, ollamaChatMessage{Role: "system", Content: system})
		for _, h := range history {
			role := "user"
			switch h.Role {
			case protocol.RoleAssistant:
				role = "assistant"
			case protocol.RoleSystem:
				role = "system"
			}
			messages = append(messages, ollamaChatMessage{Role: role, Content: h.Content})
		}

		reqBody, err := json.Marshal(ollamaChatRequest{Model: model, Messages: messages, Stream: false})
		if err != nil {
			return nil, nil, fmt.Errorf("agentfn: marshal ollama request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/chat", bytes.NewReader(reqBody))
		if err != nil {
			return nil, nil, fmt.Errorf("agentfn: build ollama request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, nil, fmt.Errorf("agentfn: ollama request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		if err != nil {
			return nil, nil, fmt.Errorf("agentfn: read ollama response: %w", err)
		}
		var out ollamaChatResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, nil, fmt.Errorf("agentfn: decode ollama response: %w", err)
		}
		if out.Error != "" {
			return nil, nil, fmt.Errorf("agentfn: ollama error: %s", out.Error)
		}

		text := out.Message.Content
		calls := extractFencedToolCalls(text)
		return &text, calls, nil
	}
}
