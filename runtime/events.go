package runtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind enumerates the observable transitions the runtime appends to a
// task's event ring (§3, §4.4).
type EventKind string

const (
	EventNewMessage       EventKind = "new_message"
	EventToolCall         EventKind = "tool_call"
	EventActionCall       EventKind = "action_call"
	EventActionComplete   EventKind = "action_complete"
	EventTaskComplete     EventKind = "task_complete"
	EventTaskError        EventKind = "task_error"
	EventAgentError       EventKind = "agent_error"
	EventBreakpointCall   EventKind = "breakpoint_tool_call"
	EventPing             EventKind = "ping"
)

// Event is one entry in a task's event ring.
type Event struct {
	ID          string                 `json:"id"`
	Kind        EventKind              `json:"kind"`
	Timestamp   time.Time              `json:"timestamp"`
	Description string                 `json:"description"`
	TaskID      string                 `json:"task_id"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

func newEvent(taskID string, kind EventKind, description string, extra map[string]interface{}) Event {
	return Event{
		ID:          uuid.NewString(),
		Kind:        kind,
		Timestamp:   time.Now().UTC(),
		Description: description,
		TaskID:      taskID,
		Extra:       extra,
	}
}

// ringCapacity is the minimum per-task event retention §3 requires.
const ringCapacity = 1000

// eventRing is a bounded, append-only (from the scheduler's perspective)
// ring buffer of events for a single task. Older events are silently
// dropped on overflow and counted; droppedCount reports that count.
type eventRing struct {
	mu            sync.RWMutex
	buf           []Event
	dropped       int
	subscribers   map[int]chan Event
	nextSubID     int
}

func newEventRing() *eventRing {
	return &eventRing{
		buf:         make([]Event, 0, ringCapacity),
		subscribers: make(map[int]chan Event),
	}
}

func (r *eventRing) append(e Event) {
	r.mu.Lock()
	if len(r.buf) >= ringCapacity {
		copy(r.buf, r.buf[1:])
		r.buf = r.buf[:len(r.buf)-1]
		r.dropped++
	}
	r.buf = append(r.buf, e)
	subs := make([]chan Event, 0, len(r.subscribers))
	for _, ch := range r.subscribers {
		subs = append(subs, ch)
	}
	r.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// snapshot returns a copy of every retained event, oldest first.
func (r *eventRing) snapshot() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Event, len(r.buf))
	copy(out, r.buf)
	return out
}

func (r *eventRing) droppedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dropped
}

// subscribe registers a channel that receives future appended events, used
// by submit_and_stream. Sends never block: an event that finds ch full is
// dropped for that subscriber. The returned function unsubscribes.
func (r *eventRing) subscribe(ch chan Event) func() {
	r.mu.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.subscribers[id] = ch
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.subscribers, id)
		r.mu.Unlock()
	}
}
