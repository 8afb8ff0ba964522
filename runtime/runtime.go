// Package runtime implements the priority-scheduled dispatch loop that is
// the core of MAIL (§4.4): the queue, per-agent-per-task histories, pending
// futures and event streams, and breakpoint stash/resume.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mail-swarm/mail/action"
	"github.com/mail-swarm/mail/logctx"
	"github.com/mail-swarm/mail/protocol"
)

// Router is the outbound half of interswarm federation, injected into a
// Runtime rather than reached through process-global state (§9 design
// note). interswarm.Router satisfies this interface structurally.
type Router interface {
	// Send wraps env for a remote recipient and transports it. ownerSwarm
	// is the task's owning swarm; Send uses /interswarm/forward when the
	// local swarm is the owner and /interswarm/back otherwise.
	Send(ctx context.Context, env protocol.Envelope, ownerSwarm string, contributors []string) error
}

// Config configures a Runtime at construction.
type Config struct {
	LocalSwarm string
	Agents     []AgentDescriptor
	Actions    *action.Registry
	Router     Router // optional; nil disables interswarm sends
	Logger     logctx.Logger
	PingInterval time.Duration // default 15s, per submit_and_stream (§4.4)
}

// Runtime is a single-threaded-cooperative scheduler instance. Multiple
// Runtimes (e.g. one per authenticated user) share nothing but a Router.
type Runtime struct {
	localSwarm string
	agents     map[string]AgentDescriptor
	entrypoint string
	actions    *action.Registry
	router     Router
	log        logctx.Logger
	pingEvery  time.Duration

	q       *queue
	history *historyStore

	mu           sync.RWMutex
	tasks        map[string]*Task
	taskComplete map[string]bool // task_id -> a task_complete was already emitted locally (invariant 2)

	busyMu sync.Mutex
	busy   map[string]bool

	// discover, when set by a swarm.Container, implements the
	// discover_swarms tool's registry lookup; the runtime itself has no
	// dependency on the registry package.
	discover func(ctx context.Context, urls []string)

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

// SetDiscoverFunc wires the discover_swarms tool to a swarm registry's
// Discover operation. Called once by swarm.Container during construction.
func (r *Runtime) SetDiscoverFunc(fn func(ctx context.Context, urls []string)) {
	r.discover = fn
}

// New validates cfg per §4.5's instantiation checks and constructs a
// Runtime. At least one agent must have CanCompleteTasks=true; exactly one
// must have EnableEntrypoint=true; every agent's CommTargets must reference
// an agent present in the swarm (bare names only — remote "name@swarm"
// targets are authorized at dispatch, not at construction); no agent may be
// named "all".
func New(cfg Config) (*Runtime, error) {
	if cfg.LocalSwarm == "" {
		return nil, fmt.Errorf("runtime: LocalSwarm is required")
	}
	agents := make(map[string]AgentDescriptor, len(cfg.Agents))
	entrypoint := ""
	hasSupervisor := false
	for _, a := range cfg.Agents {
		if a.Name == protocol.All {
			return nil, fmt.Errorf("runtime: agent may not be named %q", protocol.All)
		}
		if _, dup := agents[a.Name]; dup {
			return nil, fmt.Errorf("runtime: duplicate agent name %q", a.Name)
		}
		agents[a.Name] = a
		if a.EnableEntrypoint {
			if entrypoint != "" {
				return nil, fmt.Errorf("runtime: more than one entrypoint agent declared")
			}
			entrypoint = a.Name
		}
		if a.CanCompleteTasks {
			hasSupervisor = true
		}
	}
	if entrypoint == "" {
		return nil, fmt.Errorf("runtime: no entrypoint agent declared")
	}
	if !hasSupervisor {
		return nil, fmt.Errorf("runtime: no agent with can_complete_tasks=true declared")
	}
	for _, a := range cfg.Agents {
		for _, target := range a.CommTargets {
			if containsAt(target) {
				continue // remote targets validated at dispatch time
			}
			if target == protocol.All {
				continue
			}
			if _, ok := agents[target]; !ok {
				return nil, fmt.Errorf("runtime: agent %q declares comm_target %q which is not in the swarm", a.Name, target)
			}
		}
	}

	actions := cfg.Actions
	if actions == nil {
		actions = action.NewRegistry()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logctx.New()
	}
	pingEvery := cfg.PingInterval
	if pingEvery <= 0 {
		pingEvery = 15 * time.Second
	}

	r := &Runtime{
		localSwarm:   cfg.LocalSwarm,
		agents:       agents,
		entrypoint:   entrypoint,
		actions:      actions,
		router:       cfg.Router,
		log:          logger.With(logctx.F("component", "runtime"), logctx.F("swarm", cfg.LocalSwarm)),
		pingEvery:    pingEvery,
		q:            newQueue(),
		history:      newHistoryStore(),
		tasks:        make(map[string]*Task),
		taskComplete: make(map[string]bool),
		stopCh:       make(chan struct{}),
	}
	return r, nil
}

func containsAt(s string) bool {
	for _, c := range s {
		if c == '@' {
			return true
		}
	}
	return false
}

// Run starts the dispatch loop and blocks until ctx is cancelled or
// shutdown completes.
func (r *Runtime) Run(ctx context.Context) {
	r.wg.Add(1)
	defer r.wg.Done()
	r.dispatchLoop(ctx)
}

// LocalSwarm returns the runtime's configured local swarm name.
func (r *Runtime) LocalSwarm() string { return r.localSwarm }

// EntrypointAgent returns the name of the declared entrypoint agent.
func (r *Runtime) EntrypointAgent() string { return r.entrypoint }

func (r *Runtime) getOrCreateTask(taskID string, owner string) *Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskID]
	if !ok {
		t = newTask(taskID, owner)
		r.tasks[taskID] = t
	}
	return t
}

func (r *Runtime) getTask(taskID string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[taskID]
	return t, ok
}

// Submit enqueues env and returns immediately (§6.1).
func (r *Runtime) Submit(env protocol.Envelope) {
	owner := fmt.Sprintf("user:%s@%s", env.Sender.Name, r.localSwarm)
	t := r.getOrCreateTask(env.TaskID, owner)
	t.events.append(newEvent(env.TaskID, EventNewMessage, fmt.Sprintf("%s -> %v", env.Sender.Name, env.Recipients), map[string]interface{}{
		"sender_kind": string(env.Sender.Kind),
		"kind":        string(env.Kind),
	}))
	r.q.push(env)
}

// SubmitForwarded is the inbound half of interswarm forwarding (§4.7, §8
// scenario 4): unlike Submit, a forwarded envelope carries its task's true
// owner and accumulated contributor set on the wire, so the receiving swarm
// seeds a brand-new task with them instead of recomputing local ownership —
// otherwise a later task_complete on this swarm would have no way to route
// its completion back to the swarm that actually owns the task. An existing
// task keeps its original owner; only contributors and the envelope itself
// are added.
func (r *Runtime) SubmitForwarded(env protocol.Envelope, owner string, contributors []string) {
	if owner == "" {
		owner = fmt.Sprintf("user:%s@%s", env.Sender.Name, r.localSwarm)
	}
	t := r.getOrCreateTask(env.TaskID, owner)
	for _, c := range contributors {
		t.addContributor(c)
	}
	t.addContributor(r.localSwarm)
	t.events.append(newEvent(env.TaskID, EventNewMessage, fmt.Sprintf("%s -> %v", env.Sender.Name, env.Recipients), map[string]interface{}{
		"sender_kind": string(env.Sender.Kind),
		"kind":        string(env.Kind),
	}))
	r.q.push(env)
}

// TaskTimeout is returned by SubmitAndWait/SubmitAndStream on timeout.
type TaskTimeout struct{ TaskID string }

func (e *TaskTimeout) Error() string { return fmt.Sprintf("task %s timed out", e.TaskID) }

// Cancelled is returned when a pending future/stream is rejected by Cancel.
type Cancelled struct{ TaskID string }

func (e *Cancelled) Error() string { return fmt.Sprintf("task %s was cancelled", e.TaskID) }

// SubmitAndWait enqueues env and blocks until task_complete resolves the
// task's future, the timeout elapses, or the task is cancelled.
func (r *Runtime) SubmitAndWait(ctx context.Context, env protocol.Envelope, timeout time.Duration) (string, error) {
	owner := fmt.Sprintf("user:%s@%s", env.Sender.Name, r.localSwarm)
	t := r.getOrCreateTask(env.TaskID, owner)
	t.mu.Lock()
	if t.pendingFuture == nil {
		t.pendingFuture = newFuture()
	}
	fut := t.pendingFuture
	t.mu.Unlock()

	r.Submit(env)

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case res := <-fut.ch:
		return res.Body, res.Err
	case <-timeoutCh:
		r.Cancel(env.TaskID)
		return "", &TaskTimeout{TaskID: env.TaskID}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// SubmitAndStream enqueues env and returns a channel of every event
// recorded for the task, plus periodic ping heartbeats, until task
// completion/cancellation or ctx is done. The returned stop function must
// be called to release the subscription.
func (r *Runtime) SubmitAndStream(ctx context.Context, env protocol.Envelope, timeout time.Duration) (<-chan Event, func(), error) {
	owner := fmt.Sprintf("user:%s@%s", env.Sender.Name, r.localSwarm)
	t := r.getOrCreateTask(env.TaskID, owner)

	out := make(chan Event, 64)
	for _, e := range t.events.snapshot() {
		out <- e
	}
	sub := make(chan Event, 64)
	unsubscribe := t.events.subscribe(sub)

	streamCtx, cancel := context.WithCancel(ctx)
	if timeout > 0 {
		var tcancel context.CancelFunc
		streamCtx, tcancel = context.WithTimeout(streamCtx, timeout)
		_ = tcancel
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(out)
		defer unsubscribe()
		ticker := time.NewTicker(r.pingEvery)
		defer ticker.Stop()
		for {
			select {
			case e, ok := <-sub:
				if !ok {
					return
				}
				select {
				case out <- e:
				default:
				}
				if e.Kind == EventTaskComplete || e.Kind == EventTaskError {
					return
				}
			case <-ticker.C:
				select {
				case out <- newEvent(t.ID, EventPing, "ping", nil):
				default:
				}
			case <-streamCtx.Done():
				return
			}
		}
	}()

	r.Submit(env)
	return out, cancel, nil
}

// ResumeKind selects a resumption mode for Resume (§4.4).
type ResumeKind string

const (
	ResumeUserResponse      ResumeKind = "user_response"
	ResumeBreakpointToolCall ResumeKind = "breakpoint_tool_call"
)

// Resume continues a task per one of the two resumption modes.
func (r *Runtime) Resume(ctx context.Context, taskID string, kind ResumeKind, env protocol.Envelope, extras map[string]string) error {
	t, ok := r.getTask(taskID)
	if !ok {
		return fmt.Errorf("runtime: unknown task %q", taskID)
	}
	switch kind {
	case ResumeUserResponse, "":
		env.TaskID = taskID
		r.Submit(env)
		return nil
	case ResumeBreakpointToolCall:
		return r.resumeBreakpoint(t, extras)
	default:
		return fmt.Errorf("runtime: unknown resume kind %q", kind)
	}
}

// Cancel evicts queued envelopes for taskID, rejects its pending future,
// and marks it errored (§4.4). Cancellation is idempotent.
func (r *Runtime) Cancel(taskID string) {
	t, ok := r.getTask(taskID)
	if !ok {
		return
	}
	r.q.evictTask(taskID)
	t.mu.Lock()
	if t.status == StatusCompleted || t.status == StatusErrored {
		t.mu.Unlock()
		return
	}
	t.status = StatusErrored
	fut := t.pendingFuture
	t.mu.Unlock()

	if fut != nil {
		fut.reject(&Cancelled{TaskID: taskID})
	}
	t.events.append(newEvent(taskID, EventTaskError, "task cancelled", nil))
}

// PendingRequests reports how many tasks currently have an unresolved
// SubmitAndWait future outstanding (§6.1 introspection).
func (r *Runtime) PendingRequests() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, t := range r.tasks {
		t.mu.Lock()
		fut := t.pendingFuture
		t.mu.Unlock()
		if fut != nil && !fut.isResolved() {
			n++
		}
	}
	return n
}

// EventsFor returns the retained event snapshot for a task (§6.1
// introspection).
func (r *Runtime) EventsFor(taskID string) []Event {
	t, ok := r.getTask(taskID)
	if !ok {
		return nil
	}
	return t.events.snapshot()
}

// Shutdown waits up to grace for the queue to drain while the dispatch loop
// keeps running, then stops the dispatch loop, cancels every task still
// running or paused, and waits for in-flight handlers (§4.5, §5's shutdown
// discipline). Submit does not check for shutdown: an envelope submitted
// after the dispatch loop has stopped is queued but never dispatched.
func (r *Runtime) Shutdown(grace time.Duration) {
	deadline := time.After(grace)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
wait:
	for {
		select {
		case <-deadline:
			break wait
		case <-ticker.C:
			if r.q.len() == 0 {
				break wait
			}
		}
	}
	r.stopOnce.Do(func() { close(r.stopCh) })

	r.mu.RLock()
	ids := make([]string, 0, len(r.tasks))
	for id, t := range r.tasks {
		if t.Status() == StatusRunning || t.Status() == StatusPaused {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	g := new(errgroup.Group)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			r.Cancel(id)
			return nil
		})
	}
	_ = g.Wait()

	r.wg.Wait()
}

// newTaskID is a convenience for callers minting a fresh task_id (used by
// swarm.Container's post_message convenience methods).
func newTaskID() string { return uuid.NewString() }

// NewTaskID exposes newTaskID to other packages.
func NewTaskID() string { return newTaskID() }
