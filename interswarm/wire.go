// Package interswarm implements the HTTP federation layer (§4.7, §6):
// wrapping a local envelope for a remote recipient, POSTing it to a peer's
// /interswarm/forward or /interswarm/back endpoint, and dispatching inbound
// wrapped envelopes back into the local runtime. The client idiom (bounded
// timeout, capped response body) is grounded in the teacher's HTTPTool
// (tools/builtin/http.go).
package interswarm

import (
	"time"

	"github.com/mail-swarm/mail/protocol"
)

// WireEnvelope is the JSON document exchanged between swarms over HTTP
// (§6.2). MessageID identifies this federation hop, distinct from
// Payload.ID, so a retried delivery can be recognized and dropped as a
// no-op (§9's idempotency note) even though the wrapped Envelope keeps its
// own stable ID across any number of hops.
type WireEnvelope struct {
	MessageID        string            `json:"message_id"`
	SourceSwarm      string            `json:"source_swarm"`
	TargetSwarm      string            `json:"target_swarm"`
	Timestamp        time.Time         `json:"timestamp"`
	Payload          protocol.Envelope `json:"payload"`
	TaskOwner        string            `json:"task_owner"`        // "role:id@swarm"
	TaskContributors []string          `json:"task_contributors"` // set semantics, always includes TaskOwner
	AuthToken        string            `json:"auth_token,omitempty"`
	Metadata         Metadata          `json:"metadata,omitempty"`
}

// Metadata carries the free-form routing hints §6.2 allows, typed here
// instead of left as a bare map (SPEC_FULL.md §3).
type Metadata struct {
	ExpectResponse bool `json:"expect_response,omitempty"`
	Stream         bool `json:"stream,omitempty"`
}

// ForwardPath is the endpoint a swarm exposes for new or continuing tasks it
// does not own (§6.3): initiate a new task on a peer.
const ForwardPath = "/interswarm/forward"

// BackPath is the endpoint a swarm exposes for continuing/completing a task
// owned elsewhere (§6.3).
const BackPath = "/interswarm/back"

// HealthPath is the liveness endpoint polled by registry.Registry's health
// loop (§4.6, §6.3).
const HealthPath = "/health"

// DefaultTimeout is the recommended outbound request timeout (§4.7).
const DefaultTimeout = 60 * time.Second

// MaxResponseBody bounds how much of a peer's response body is read,
// mirroring the teacher's HTTPTool.maxBodySize guard against unbounded
// remote responses.
const MaxResponseBody = 10 * 1024 * 1024
