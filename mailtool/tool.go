// Package mailtool implements the built-in MAIL tool catalog (§4.2): the
// fixed set of tools every agent is given for free, and the conversion from
// a tool invocation into an outbound Envelope.
package mailtool

// Name is one of the fixed MAIL tool names. Argument shapes are enumerated
// by SchemaFor (schema.go); names MUST match these constants exactly, since the
// runtime dispatches on them by string comparison against an agent's
// tool-call output.
type Name string

const (
	SendRequest             Name = "send_request"
	SendResponse            Name = "send_response"
	SendInterrupt           Name = "send_interrupt"
	SendBroadcast           Name = "send_broadcast"
	TaskComplete            Name = "task_complete"
	AcknowledgeBroadcast    Name = "acknowledge_broadcast"
	IgnoreBroadcast         Name = "ignore_broadcast"
	AwaitMessage            Name = "await_message"
	SendInterswarmBroadcast Name = "send_interswarm_broadcast"
	DiscoverSwarms          Name = "discover_swarms"
	Help                    Name = "help"
)

// All lists every built-in MAIL tool name, in catalog order. Help is
// additive: it is not in spec.md's table but is carried from the original
// implementation's create_help_tool (see SPEC_FULL.md §3).
var All = []Name{
	SendRequest, SendResponse, SendInterrupt, SendBroadcast, TaskComplete,
	AcknowledgeBroadcast, IgnoreBroadcast, AwaitMessage,
	SendInterswarmBroadcast, DiscoverSwarms, Help,
}

// IsBuiltin reports whether name is a reserved MAIL tool name, as opposed to
// a non-MAIL action name dispatched through the action executor instead.
func IsBuiltin(name string) bool {
	for _, n := range All {
		if string(n) == name {
			return true
		}
	}
	return false
}

// Call is a single tool invocation an agent's AgentFn returned: the
// arguments are kept as a loosely-typed map because each tool has its own
// argument shape (see SchemaFor) and both MAIL tools and third-party
// actions share this same call type, so the runtime can dispatch either
// without an import cycle between mailtool and action.
type Call struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// StringArg fetches a required string argument, returning ok=false if
// missing or of the wrong type.
func (c Call) StringArg(key string) (string, bool) {
	v, present := c.Args[key]
	if !present {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// StringSliceArg fetches a []string argument, tolerating a JSON-decoded
// []interface{} of strings.
func (c Call) StringSliceArg(key string) ([]string, bool) {
	v, present := c.Args[key]
	if !present {
		return nil, false
	}
	switch t := v.(type) {
	case []string:
		return t, true
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
