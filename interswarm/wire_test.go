package interswarm_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mail-swarm/mail/interswarm"
	"github.com/mail-swarm/mail/protocol"
)

func TestWireEnvelopeJSONFieldNames(t *testing.T) {
	env, err := protocol.Construct(protocol.KindRequest, "task-1", func(e *protocol.Envelope) {
		e.Sender = protocol.NewAddress(protocol.KindAgent, "planner")
		e.Recipient = protocol.NewAddress(protocol.KindAgent, "worker")
		e.Subject = "s"
		e.Body = "b"
	})
	require.NoError(t, err)

	wire := interswarm.WireEnvelope{
		MessageID:        "msg-1",
		SourceSwarm:      "home",
		TargetSwarm:      "away",
		Timestamp:        time.Now().UTC(),
		Payload:          env,
		TaskOwner:        "user:alice@home",
		TaskContributors: []string{"home", "away"},
		AuthToken:        "secret",
		Metadata:         interswarm.Metadata{ExpectResponse: true, Stream: false},
	}

	raw, err := json.Marshal(wire)
	require.NoError(t, err)

	var asMap map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &asMap))

	for _, key := range []string{
		"message_id", "source_swarm", "target_swarm", "timestamp",
		"payload", "task_owner", "task_contributors", "auth_token", "metadata",
	} {
		assert.Contains(t, asMap, key)
	}

	metadata, ok := asMap["metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, metadata, "expect_response")
	assert.NotContains(t, metadata, "stream", "stream omits when false per its omitempty tag")
}

func TestWireEnvelopeOmitsEmptyAuthToken(t *testing.T) {
	wire := interswarm.WireEnvelope{MessageID: "m", SourceSwarm: "a", TargetSwarm: "b"}
	raw, err := json.Marshal(wire)
	require.NoError(t, err)

	var asMap map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &asMap))
	assert.NotContains(t, asMap, "auth_token")

	// Metadata is a struct-valued field, so encoding/json's omitempty never
	// drops it; its own fields (expect_response, stream) still individually
	// omit when false.
	metadata, ok := asMap["metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.Empty(t, metadata)
}
