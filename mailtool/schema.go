package mailtool

import "github.com/invopop/jsonschema"

// Argument shapes for the fixed MAIL tool catalog, tagged for
// github.com/invopop/jsonschema so a swarm embedding a real LM backend can
// advertise these to the model exactly as it would any other function-call
// tool (see action.Action[T] for the same treatment of non-MAIL tools).

type SendRequestArgs struct {
	Target  string `json:"target" jsonschema:"required,description=Recipient agent name, or name@swarm for a remote agent"`
	Subject string `json:"subject" jsonschema:"required,description=Short subject line"`
	Body    string `json:"body" jsonschema:"required,description=Message body"`
}

type SendResponseArgs struct {
	Target  string `json:"target" jsonschema:"required,description=Agent the response replies to"`
	Subject string `json:"subject" jsonschema:"required"`
	Body    string `json:"body" jsonschema:"required"`
}

type SendInterruptArgs struct {
	Target  string `json:"target" jsonschema:"required"`
	Subject string `json:"subject" jsonschema:"required"`
	Body    string `json:"body" jsonschema:"required"`
}

type SendBroadcastArgs struct {
	Subject string `json:"subject" jsonschema:"required"`
	Body    string `json:"body" jsonschema:"required"`
}

type TaskCompleteArgs struct {
	FinishMessage string `json:"finish_message" jsonschema:"required,description=The final user-visible answer for this task"`
}

type AcknowledgeBroadcastArgs struct {
	Note string `json:"note,omitempty"`
}

type IgnoreBroadcastArgs struct {
	Reason string `json:"reason,omitempty"`
}

type AwaitMessageArgs struct {
	Reason string `json:"reason,omitempty"`
}

type SendInterswarmBroadcastArgs struct {
	Subject      string   `json:"subject" jsonschema:"required"`
	Body         string   `json:"body" jsonschema:"required"`
	TargetSwarms []string `json:"target_swarms" jsonschema:"required,description=Names of remote swarms to broadcast to"`
}

type DiscoverSwarmsArgs struct {
	DiscoveryURLs []string `json:"discovery_urls" jsonschema:"required,description=Catalog URLs advertising peer swarms"`
}

// SchemaFor returns the generated JSON Schema for a built-in tool's
// argument struct, keyed by Name. Unknown names return nil.
func SchemaFor(name Name) *jsonschema.Schema {
	r := &jsonschema.Reflector{ExpandedStruct: true}
	switch name {
	case SendRequest:
		return r.Reflect(&SendRequestArgs{})
	case SendResponse:
		return r.Reflect(&SendResponseArgs{})
	case SendInterrupt:
		return r.Reflect(&SendInterruptArgs{})
	case SendBroadcast:
		return r.Reflect(&SendBroadcastArgs{})
	case TaskComplete:
		return r.Reflect(&TaskCompleteArgs{})
	case AcknowledgeBroadcast:
		return r.Reflect(&AcknowledgeBroadcastArgs{})
	case IgnoreBroadcast:
		return r.Reflect(&IgnoreBroadcastArgs{})
	case AwaitMessage:
		return r.Reflect(&AwaitMessageArgs{})
	case SendInterswarmBroadcast:
		return r.Reflect(&SendInterswarmBroadcastArgs{})
	case DiscoverSwarms:
		return r.Reflect(&DiscoverSwarmsArgs{})
	default:
		return nil
	}
}

// HelpText returns a short human-readable description of a built-in tool,
// the payload of the supplemental "help" tool (see SPEC_FULL.md §3; carried
// over from the original implementation's create_help_tool).
func HelpText(name Name) string {
	switch name {
	case SendRequest:
		return "send_request(target, subject, body): address a request to an agent within your comm_targets; expect a send_response reply."
	case SendResponse:
		return "send_response(target, subject, body): reply to the most recent request you received from target."
	case SendInterrupt:
		return "send_interrupt(target, subject, body): deliver a high-priority message ahead of ordinary requests and broadcasts."
	case SendBroadcast:
		return "send_broadcast(subject, body): notify every local agent; recipients may acknowledge_broadcast or ignore_broadcast."
	case TaskComplete:
		return "task_complete(finish_message): end the task with a final answer. Only effective if you are a supervisor."
	case AcknowledgeBroadcast:
		return "acknowledge_broadcast(note?): record that you've seen the current broadcast without sending a reply."
	case IgnoreBroadcast:
		return "ignore_broadcast(reason?): discard the current broadcast silently."
	case AwaitMessage:
		return "await_message(reason?): go idle until a new envelope targets you."
	case SendInterswarmBroadcast:
		return "send_interswarm_broadcast(subject, body, target_swarms): broadcast to the named remote swarms."
	case DiscoverSwarms:
		return "discover_swarms(discovery_urls): register the peers advertised at each URL."
	case Help:
		return "help(topic?): describe MAIL itself, your own identity, or a specific tool."
	default:
		return ""
	}
}
