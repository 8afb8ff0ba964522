// Package agentfn provides runtime.AgentFn implementations: adapters over a
// real LM backend (Claude via anthropic-sdk-go, OpenAI via openai-go) and a
// deterministic scripted agent for tests and examples. Each adapter turns an
// agent's rendered history (protocol.HistoryEntry) into a single model call
// and turns the model's tool-call output back into mailtool.Call/action
// invocations, closing the loop the teacher's llm.Provider abstraction left
// to a caller to wire up by hand.
package agentfn

import (
	"encoding/json"

	"github.com/mail-swarm/mail/action"
	"github.com/mail-swarm/mail/mailtool"
)

// ToolSpec is a backend-neutral description of one callable tool, built
// from the swarm's MAIL tool catalog and non-MAIL action registry so both
// adapters can present the same tool list to their respective SDKs without
// duplicating the catalog walk.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// BuildToolSpecs enumerates the tools available to an agent: every builtin
// MAIL tool (minus send_interswarm_broadcast/discover_swarms when the swarm
// has no federation configured is left to the caller — agents are always
// offered the full catalog per §4.2) plus every action the agent declared.
func BuildToolSpecs(agentActions []string, registry *action.Registry) []ToolSpec {
	specs := make([]ToolSpec, 0, len(mailtool.All)+len(agentActions))
	for _, name := range mailtool.All {
		// SchemaFor returns a nil *jsonschema.Schema for tools without an
		// argument struct (help); pass an untyped nil so schemaToMap's nil
		// guard sees it.
		var m map[string]interface{}
		if schema := mailtool.SchemaFor(name); schema != nil {
			m = schemaToMap(schema)
		} else {
			m = schemaToMap(nil)
		}
		specs = append(specs, ToolSpec{
			Name:        string(name),
			Description: mailtool.HelpText(name),
			Schema:      m,
		})
	}
	if registry == nil {
		return specs
	}
	for _, name := range agentActions {
		schema, ok := registry.Schema(name)
		if !ok {
			continue
		}
		specs = append(specs, ToolSpec{
			Name:   name,
			Schema: schemaToMap(schema),
		})
	}
	return specs
}

// schemaToMap converts an *jsonschema.Schema into the plain
// map[string]interface{} both SDKs expect for a tool's input_schema/
// parameters field. Marshaling through JSON keeps this adapter-agnostic
// rather than depending on either SDK's schema type.
func schemaToMap(schema interface{ MarshalJSON() ([]byte, error) }) map[string]interface{} {
	if schema == nil {
		return map[string]interface{}{"type": "object"}
	}
	data, err := schema.MarshalJSON()
	if err != nil {
		return map[string]interface{}{"type": "object"}
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]interface{}{"type": "object"}
	}
	return out
}
