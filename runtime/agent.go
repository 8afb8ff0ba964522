package runtime

import (
	"context"
	"sync"

	"github.com/mail-swarm/mail/mailtool"
	"github.com/mail-swarm/mail/protocol"
)

// AgentFn is the opaque agent function §9's design notes describe: an
// adapter over an LM backend, a deterministic mock, or a programmable stub.
// The scheduler never inspects its internals; it only ever feeds it a
// history and inspects the text/tool-calls it returns.
type AgentFn func(ctx context.Context, history []protocol.HistoryEntry) (text *string, calls []mailtool.Call, err error)

// AgentDescriptor is the static definition of one agent in a swarm (§3).
type AgentDescriptor struct {
	Name             string
	CommTargets      []string
	CanCompleteTasks bool
	EnableEntrypoint bool
	ToolFormat       string
	Fn               AgentFn
	Actions          []string
}

// historyKey identifies one agent's history within one task, mirroring the
// original implementation's "{task_id}::{agent_name}" composite key.
type historyKey struct {
	taskID string
	agent  string
}

// historyStore is the runtime's per-(task,agent) ordered history table.
type historyStore struct {
	mu   sync.Mutex
	data map[historyKey][]protocol.HistoryEntry
}

func newHistoryStore() *historyStore {
	return &historyStore{data: make(map[historyKey][]protocol.HistoryEntry)}
}

func (h *historyStore) append(taskID, agent string, entries ...protocol.HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := historyKey{taskID, agent}
	h.data[k] = append(h.data[k], entries...)
}

func (h *historyStore) snapshot(taskID, agent string) []protocol.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	src := h.data[historyKey{taskID, agent}]
	out := make([]protocol.HistoryEntry, len(src))
	copy(out, src)
	return out
}
