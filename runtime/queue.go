package runtime

import (
	"sync"

	"github.com/mail-swarm/mail/protocol"
)

// queue is the scheduler's priority queue (§4.4). Entries are kept sorted
// by (priority tier, timestamp, id) on insert; dequeue scans from the front
// for the first entry whose task is not paused, so a paused task's
// envelopes never block progress on other tasks.
//
// An insertion-sorted slice rather than a heap keeps the "first eligible,
// not just first" dequeue rule simple to express correctly; the swarms
// this runtime targets run small agent counts, so O(n) insert is not a
// bottleneck the way it would be in a high-throughput broker.
type queue struct {
	mu      sync.Mutex
	entries []protocol.Envelope
	signal  chan struct{}
}

func newQueue() *queue {
	return &queue{signal: make(chan struct{}, 1)}
}

func less(a, b protocol.Envelope) bool {
	ta, tb := a.PriorityTier(), b.PriorityTier()
	if ta != tb {
		return ta < tb
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}

func (q *queue) push(env protocol.Envelope) {
	q.mu.Lock()
	idx := len(q.entries)
	for i, e := range q.entries {
		if less(env, e) {
			idx = i
			break
		}
	}
	q.entries = append(q.entries, protocol.Envelope{})
	copy(q.entries[idx+1:], q.entries[idx:])
	q.entries[idx] = env
	q.mu.Unlock()
	q.wake()
}

func (q *queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// popEligible removes and returns the highest-priority envelope whose task
// is eligible per isEligible, or ok=false if none are.
func (q *queue) popEligible(isEligible func(taskID string) bool) (protocol.Envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if isEligible(e.TaskID) {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return e, true
		}
	}
	return protocol.Envelope{}, false
}

// evictTask removes and returns every queued envelope for taskID, in
// original order, used by breakpoint stash and by cancel.
func (q *queue) evictTask(taskID string) []protocol.Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []protocol.Envelope
	kept := q.entries[:0]
	for _, e := range q.entries {
		if e.TaskID == taskID {
			out = append(out, e)
		} else {
			kept = append(kept, e)
		}
	}
	q.entries = kept
	return out
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
