package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderForAgentIsDeterministic(t *testing.T) {
	env := Envelope{
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Sender:    NewAddress(KindAgent, "planner"),
		Subject:   "status",
		Body:      "all clear",
	}
	to := NewAddress(KindAgent, "worker")

	first := RenderForAgent(env, to)
	second := RenderForAgent(env, to)
	assert.Equal(t, first, second, "identical envelopes must render byte-identical blocks")
	assert.Contains(t, first, "<subject>status</subject>")
	assert.Contains(t, first, "<body>all clear</body>")
	assert.Contains(t, first, `<from type="agent">planner</from>`)
	assert.Contains(t, first, `<to type="agent">worker</to>`)
}

func TestRenderForAgentEscapesXMLSpecialCharacters(t *testing.T) {
	env := Envelope{
		Sender:  NewAddress(KindAgent, "planner"),
		Subject: "a < b & c > d",
		Body:    "<script>alert(1)</script>",
	}
	out := RenderForAgent(env, NewAddress(KindAgent, "worker"))
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "a &lt; b &amp; c &gt; d")
}

func TestRenderForAgentUsesRecipientAddress(t *testing.T) {
	env := Envelope{Sender: NewAddress(KindUser, "alice"), Subject: "hi", Body: "hello"}
	out := RenderForAgent(env, NewAddress(KindAgent, "worker@remote-swarm"))
	require.Contains(t, out, `<to type="agent">worker@remote-swarm</to>`)
}
