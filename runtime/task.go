package runtime

import (
	"sync"
	"time"

	"github.com/mail-swarm/mail/mailtool"
	"github.com/mail-swarm/mail/protocol"
)

// Status is a task's lifecycle state (§3).
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusErrored   Status = "errored"
)

// PendingBreakpoint is one breakpoint action call awaiting an externally
// supplied result. An agent turn may emit several breakpoint tool calls at
// once (§4.4: "extras ... may be one object or an array for multiple
// parallel breakpoints"); each becomes one PendingBreakpoint in the task's
// stash, in call order.
type PendingBreakpoint struct {
	CallerAgent string
	Call        mailtool.Call
}

// BreakpointStash is the record a paused task carries while awaiting an
// external resume (§4.3, §4.4 resumption mode breakpoint_tool_call). The
// queue is stashed exactly once per pause, even if several breakpoint
// calls accumulate into Pending before resume.
type BreakpointStash struct {
	Pending          []PendingBreakpoint
	StashedEnvelopes []protocol.Envelope
}

// future is the one-shot resolvable handle backing submit_and_wait.
type future struct {
	once sync.Once
	ch   chan futureResult
	done chan struct{}
}

type futureResult struct {
	Body string
	Err  error
}

func newFuture() *future {
	return &future{ch: make(chan futureResult, 1), done: make(chan struct{})}
}

func (f *future) resolve(body string) {
	f.once.Do(func() {
		f.ch <- futureResult{Body: body}
		close(f.done)
	})
}

func (f *future) reject(err error) {
	f.once.Do(func() {
		f.ch <- futureResult{Err: err}
		close(f.done)
	})
}

// isResolved reports whether the future has been resolved or rejected,
// without consuming the one-shot result value.
func (f *future) isResolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Task is the runtime's record of a logical unit of work (§3). It survives
// completion so a later submission with the same task_id resumes the
// conversation.
type Task struct {
	ID           string
	Owner        string // role:id@swarm
	StartTime    time.Time

	mu           sync.Mutex
	status       Status
	contributors map[string]bool

	pendingFuture *future
	breakpoint    *BreakpointStash

	events *eventRing

	// lastRequestID[agentName][fromTarget] records the request_id of the
	// most recent request that `fromTarget` sent `agentName`, so a
	// send_response tool call (which carries no request_id argument) can
	// be correlated with the request it answers.
	lastRequestID map[string]map[string]string
}

func newTask(id, owner string) *Task {
	return &Task{
		ID:            id,
		Owner:         owner,
		StartTime:     time.Now().UTC(),
		status:        StatusRunning,
		contributors:  map[string]bool{owner: true},
		events:        newEventRing(),
		lastRequestID: make(map[string]map[string]string),
	}
}

func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Task) setStatus(s Status) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

func (t *Task) addContributor(swarm string) {
	t.mu.Lock()
	t.contributors[swarm] = true
	t.mu.Unlock()
}

// Contributors returns the current contributor set. Owner is always a
// member (§3 invariant 5).
func (t *Task) Contributors() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.contributors))
	for c := range t.contributors {
		out = append(out, c)
	}
	return out
}

func (t *Task) recordLastRequestID(recipientAgent, sender, requestID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.lastRequestID[recipientAgent]
	if !ok {
		m = make(map[string]string)
		t.lastRequestID[recipientAgent] = m
	}
	m[sender] = requestID
}

func (t *Task) lookupLastRequestID(recipientAgent, target string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.lastRequestID[recipientAgent]
	if !ok {
		return ""
	}
	return m[target]
}

func (t *Task) setBreakpoint(b *BreakpointStash) {
	t.mu.Lock()
	t.breakpoint = b
	t.mu.Unlock()
}

func (t *Task) takeBreakpoint() *BreakpointStash {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.breakpoint
	t.breakpoint = nil
	return b
}

// Lifetime returns how long the task has been running.
func (t *Task) Lifetime() time.Duration {
	return time.Since(t.StartTime)
}

// MessagesByType filters the task's recorded events by kind.
func (t *Task) MessagesByType(kind EventKind) []Event {
	out := make([]Event, 0)
	for _, e := range t.events.snapshot() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// MessagesByAgent filters events whose Extra["agent"] matches name.
func (t *Task) MessagesByAgent(name string) []Event {
	out := make([]Event, 0)
	for _, e := range t.events.snapshot() {
		if e.Extra != nil && e.Extra["agent"] == name {
			out = append(out, e)
		}
	}
	return out
}

// MessagesFromSystem returns every event whose Extra["sender_kind"] is
// "system".
func (t *Task) MessagesFromSystem() []Event {
	return t.messagesFromKind(string(protocol.KindSystem))
}

// MessagesFromUser returns every event whose Extra["sender_kind"] is "user".
func (t *Task) MessagesFromUser() []Event {
	return t.messagesFromKind(string(protocol.KindUser))
}

func (t *Task) messagesFromKind(kind string) []Event {
	out := make([]Event, 0)
	for _, e := range t.events.snapshot() {
		if e.Extra != nil && e.Extra["sender_kind"] == kind {
			out = append(out, e)
		}
	}
	return out
}
