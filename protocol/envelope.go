package protocol

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeKind discriminates the envelope sum type. Envelope is a tagged
// union over this field; there is no class hierarchy, per the reference
// implementation's "tagged variants over inheritance" design note.
type EnvelopeKind string

const (
	KindRequest       EnvelopeKind = "request"
	KindResponse      EnvelopeKind = "response"
	KindBroadcast     EnvelopeKind = "broadcast"
	KindInterrupt     EnvelopeKind = "interrupt"
	KindTaskComplete  EnvelopeKind = "task_complete"
)

// System-originated subjects are wrapped in double-colon markers so agents
// can distinguish them from ordinary conversational subjects at a glance.
const (
	SubjectToolCallError = "::tool_call_error::"
	SubjectAgentError     = "::agent_error::"
	SubjectRouterError    = "::router_error::"
	SubjectTaskError      = "::task_error::"
	SubjectRuntimeError   = "::runtime_error::"
)

// Envelope is the currency of the scheduler: every unit exchanged between
// agents, users, and the system is one of these. Kind selects which payload
// fields are meaningful; unused fields are left zero.
type Envelope struct {
	ID        string       `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	TaskID    string       `json:"task_id"`
	Kind      EnvelopeKind `json:"kind"`

	Sender     Address   `json:"sender"`
	Recipient  Address   `json:"recipient,omitempty"`  // request/response
	Recipients []Address `json:"recipients,omitempty"` // broadcast/interrupt/task_complete

	Subject string `json:"subject"`
	Body    string `json:"body"`

	RequestID     string `json:"request_id,omitempty"`
	BroadcastID   string `json:"broadcast_id,omitempty"`
	InterruptID   string `json:"interrupt_id,omitempty"`

	// Federation-only fields, meaningful only once a router touches the
	// envelope; zero for purely local traffic.
	SenderSwarm     string            `json:"sender_swarm,omitempty"`
	RecipientSwarms []string          `json:"recipient_swarms,omitempty"`
	RoutingInfo     map[string]string `json:"routing_info,omitempty"`
}

// SchemaError reports a malformed envelope rejected at Construct.
type SchemaError struct {
	Kind   EnvelopeKind
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error constructing %s envelope: %s", e.Kind, e.Reason)
}

// Construct validates and stamps a new Envelope. It assigns ID and
// Timestamp, so callers only populate the payload fields that matter for
// the chosen Kind. Envelope literals built elsewhere (zero-value
// placeholders and test fixtures) skip these checks.
func Construct(kind EnvelopeKind, taskID string, build func(*Envelope)) (Envelope, error) {
	env := Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		TaskID:    taskID,
		Kind:      kind,
	}
	build(&env)

	if env.TaskID == "" {
		return Envelope{}, &SchemaError{Kind: kind, Reason: "task_id is required"}
	}

	switch kind {
	case KindRequest, KindResponse:
		if env.Sender.Name == "" {
			return Envelope{}, &SchemaError{Kind: kind, Reason: "sender is required"}
		}
		if env.Recipient.Name == "" {
			return Envelope{}, &SchemaError{Kind: kind, Reason: "recipient is required"}
		}
		if env.Subject == "" {
			return Envelope{}, &SchemaError{Kind: kind, Reason: "subject is required"}
		}
	case KindBroadcast, KindInterrupt, KindTaskComplete:
		if env.Sender.Name == "" {
			return Envelope{}, &SchemaError{Kind: kind, Reason: "sender is required"}
		}
		if len(env.Recipients) == 0 {
			return Envelope{}, &SchemaError{Kind: kind, Reason: "recipients must be non-empty"}
		}
		if kind == KindTaskComplete {
			if len(env.Recipients) != 1 || !env.Recipients[0].IsAll() {
				return Envelope{}, &SchemaError{Kind: kind, Reason: "task_complete recipients must be [all]"}
			}
		}
	default:
		return Envelope{}, &SchemaError{Kind: kind, Reason: "unknown envelope kind"}
	}

	return env, nil
}

// PriorityTier orders envelope kinds/senders for the scheduler, highest
// priority first (lowest numeric tier value). See §4.4: system > admin/user
// > agent interrupt > agent broadcast/task_complete > agent request/response.
func (e Envelope) PriorityTier() int {
	switch e.Sender.Kind {
	case KindSystem:
		return 0
	case KindAdmin, KindUser:
		return 1
	}
	switch e.Kind {
	case KindInterrupt:
		return 2
	case KindBroadcast, KindTaskComplete:
		return 3
	default:
		return 4
	}
}

// ExpandRecipients returns the concrete list of addresses a broadcast or
// interrupt envelope targets, substituting the full agent roster for the
// reserved "all" address. Request/response envelopes return their single
// Recipient.
func (e Envelope) ExpandRecipients(localAgents []string) []Address {
	if e.Kind == KindRequest || e.Kind == KindResponse {
		return []Address{e.Recipient}
	}
	out := make([]Address, 0, len(e.Recipients))
	for _, r := range e.Recipients {
		if r.IsAll() {
			for _, name := range localAgents {
				out = append(out, NewAddress(KindAgent, name))
			}
			continue
		}
		out = append(out, r)
	}
	return out
}
