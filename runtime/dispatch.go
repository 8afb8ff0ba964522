package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mail-swarm/mail/logctx"
	"github.com/mail-swarm/mail/mailtool"
	"github.com/mail-swarm/mail/protocol"
)

// dispatchLoop is the single scheduler goroutine. It repeatedly dequeues the
// highest-priority envelope whose task is eligible (not paused, not already
// being processed) and hands it to handleEnvelope on its own goroutine, so
// agent/action invocations across distinct tasks proceed concurrently while
// a single task's own envelopes are still processed one at a time — the Go
// expression of §4.4/§5's "single-threaded cooperative" model.
func (r *Runtime) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		default:
		}

		env, ok := r.q.popEligible(r.isEligible)
		if !ok {
			select {
			case <-r.q.signal:
			case <-time.After(50 * time.Millisecond):
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			}
			continue
		}

		r.markBusy(env.TaskID)
		r.wg.Add(1)
		go func(e protocol.Envelope) {
			defer r.wg.Done()
			defer r.clearBusy(e.TaskID)
			defer r.q.wake()
			r.handleEnvelope(ctx, e)
		}(env)
	}
}

func (r *Runtime) isEligible(taskID string) bool {
	t, ok := r.getTask(taskID)
	if !ok {
		return true // first envelope for a brand new task
	}
	if t.Status() == StatusPaused || t.Status() == StatusErrored {
		return false
	}
	r.busyMu.Lock()
	busy := r.busy[taskID]
	r.busyMu.Unlock()
	return !busy
}

func (r *Runtime) markBusy(taskID string) {
	r.busyMu.Lock()
	if r.busy == nil {
		r.busy = make(map[string]bool)
	}
	r.busy[taskID] = true
	r.busyMu.Unlock()
}

func (r *Runtime) clearBusy(taskID string) {
	r.busyMu.Lock()
	delete(r.busy, taskID)
	r.busyMu.Unlock()
}

func (r *Runtime) localAgentNames() []string {
	names := make([]string, 0, len(r.agents))
	for n := range r.agents {
		names = append(names, n)
	}
	return names
}

// handleEnvelope is step 1-3 of §4.4's dispatch loop for a single dequeued
// envelope: history append, agent invocation, and tool-call fan-out.
func (r *Runtime) handleEnvelope(ctx context.Context, env protocol.Envelope) {
	t := r.getOrCreateTask(env.TaskID, fmt.Sprintf("user:%s@%s", env.Sender.Name, r.localSwarm))

	recipients := env.ExpandRecipients(r.localAgentNames())
	var wg sync.WaitGroup
	for _, to := range recipients {
		if to.IsRemote(r.localSwarm) {
			r.forwardRemote(ctx, env, to, t)
			continue
		}
		agentName := to.Local()
		desc, ok := r.agents[agentName]
		if !ok {
			r.log.Warn("unknown recipient", logctx.F("agent", agentName), logctx.F("task_id", env.TaskID))
			if env.Sender.Kind == protocol.KindAgent {
				r.sendSystemResponse(env.TaskID, env.Sender.Local(), protocol.SubjectRouterError,
					fmt.Sprintf("unknown local recipient %q", agentName))
			}
			continue
		}
		wg.Add(1)
		go func(d AgentDescriptor, addr protocol.Address) {
			defer wg.Done()
			r.invokeAgent(ctx, t, env, d, addr)
		}(desc, to)
	}
	wg.Wait()
}

func (r *Runtime) sendSystemResponse(taskID, toAgent, subject, body string) {
	env, err := protocol.Construct(protocol.KindResponse, taskID, func(e *protocol.Envelope) {
		e.Sender = protocol.NewAddress(protocol.KindSystem, "system")
		e.Recipient = protocol.NewAddress(protocol.KindAgent, toAgent)
		e.Subject = subject
		e.Body = body
	})
	if err != nil {
		r.log.Error("failed to construct system response", logctx.F("err", err))
		return
	}
	r.q.push(env)
}

func (r *Runtime) invokeAgent(ctx context.Context, t *Task, env protocol.Envelope, desc AgentDescriptor, to protocol.Address) {
	rendered := protocol.RenderForAgent(env, to)
	r.history.append(env.TaskID, desc.Name, protocol.HistoryEntry{Role: protocol.RoleUser, Content: rendered})

	text, calls, err := desc.Fn(ctx, r.history.snapshot(env.TaskID, desc.Name))
	if err != nil {
		t.events.append(newEvent(env.TaskID, EventAgentError, err.Error(), map[string]interface{}{"agent": desc.Name}))
		r.sendSystemResponse(env.TaskID, desc.Name, protocol.SubjectAgentError, err.Error())
		return
	}

	assistantContent := ""
	if text != nil {
		assistantContent = *text
	}
	r.history.append(env.TaskID, desc.Name, protocol.HistoryEntry{Role: protocol.RoleAssistant, Content: assistantContent})

	for _, call := range calls {
		t.events.append(newEvent(env.TaskID, EventToolCall, call.Name, map[string]interface{}{"agent": desc.Name}))
		r.dispatchCall(ctx, t, env.TaskID, desc, call)
	}
}

// dispatchCall routes one tool call to the MAIL tool catalog, the builtin
// side-effect tools, or the action executor (§4.2, §4.3).
func (r *Runtime) dispatchCall(ctx context.Context, t *Task, taskID string, desc AgentDescriptor, call mailtool.Call) {
	if mailtool.IsBuiltin(call.Name) {
		r.dispatchMAILTool(ctx, t, taskID, desc, call)
		return
	}
	if !r.actions.Has(call.Name) {
		r.sendSystemResponse(taskID, desc.Name, protocol.SubjectToolCallError,
			fmt.Sprintf("%q is not a registered MAIL tool or action", call.Name))
		return
	}
	if r.actions.IsBreakpoint(call.Name) {
		r.enterBreakpoint(t, taskID, desc.Name, call)
		return
	}

	t.events.append(newEvent(taskID, EventActionCall, call.Name, map[string]interface{}{"agent": desc.Name}))
	result, err := r.actions.Execute(ctx, call)
	if err != nil {
		r.sendSystemResponse(taskID, desc.Name, protocol.SubjectToolCallError, err.Error())
		return
	}
	if result.IsError {
		r.sendSystemResponse(taskID, desc.Name, protocol.SubjectToolCallError, result.Content)
		return
	}
	t.events.append(newEvent(taskID, EventActionComplete, call.Name, map[string]interface{}{"agent": desc.Name}))
	r.history.append(taskID, desc.Name, protocol.HistoryEntry{Role: protocol.RoleTool, Content: result.Content})
}

func (r *Runtime) dispatchMAILTool(ctx context.Context, t *Task, taskID string, desc AgentDescriptor, call mailtool.Call) {
	switch mailtool.Name(call.Name) {
	case mailtool.AcknowledgeBroadcast:
		note, _ := call.StringArg("note")
		r.history.append(taskID, desc.Name, protocol.HistoryEntry{Role: protocol.RoleTool, Content: "acknowledged: " + note})
		return
	case mailtool.IgnoreBroadcast:
		return
	case mailtool.AwaitMessage:
		return
	case mailtool.Help:
		topic, _ := call.StringArg("topic")
		r.history.append(taskID, desc.Name, protocol.HistoryEntry{Role: protocol.RoleTool, Content: mailtool.HelpText(mailtool.Name(topic))})
		return
	case mailtool.DiscoverSwarms:
		// Discovery is delegated to the registry by the swarm container,
		// which wires a non-nil r.discover callback; the runtime itself
		// has no registry dependency.
		if r.discover != nil {
			urls, _ := call.StringSliceArg("discovery_urls")
			r.discover(ctx, urls)
		}
		return
	case mailtool.TaskComplete:
		if !desc.CanCompleteTasks {
			r.log.Warn("task_complete called by non-supervisor", logctx.F("agent", desc.Name))
			return
		}
		finish, _ := call.StringArg("finish_message")
		r.completeTask(t, taskID, finish)
		return
	}

	env, err := mailtool.Convert(call, protocol.NewAddress(protocol.KindAgent, desc.Name), desc.CommTargets, func(target string) string {
		return t.lookupLastRequestID(target, desc.Name)
	}, taskID)
	if err != nil {
		r.sendSystemResponse(taskID, desc.Name, protocol.SubjectToolCallError, err.Error())
		return
	}
	if env.Kind == "" {
		return
	}
	if env.Kind == protocol.KindRequest {
		t.recordLastRequestID(env.Recipient.Local(), desc.Name, env.RequestID)
	}
	r.q.push(env)
}

// completeTask resolves the task's pending future/stream for a
// task_complete broadcast, honoring the at-most-once invariant (§3
// invariant 2, §8 boundary behavior).
func (r *Runtime) completeTask(t *Task, taskID, finishMessage string) {
	r.mu.Lock()
	if r.taskComplete[taskID] {
		r.mu.Unlock()
		r.log.Warn("task_complete re-emitted for already-completed task", logctx.F("task_id", taskID))
		return
	}
	r.taskComplete[taskID] = true
	r.mu.Unlock()

	t.setStatus(StatusCompleted)
	t.mu.Lock()
	fut := t.pendingFuture
	t.mu.Unlock()
	if fut != nil {
		fut.resolve(finishMessage)
	}
	t.events.append(newEvent(taskID, EventTaskComplete, finishMessage, nil))

	if r.router != nil {
		contributors := t.Contributors()
		if len(contributors) > 1 {
			r.broadcastCompletionToContributors(taskID, t, finishMessage, contributors)
		}
	}
}

func (r *Runtime) broadcastCompletionToContributors(taskID string, t *Task, finishMessage string, contributors []string) {
	env, err := protocol.Construct(protocol.KindTaskComplete, taskID, func(e *protocol.Envelope) {
		e.Sender = protocol.NewAddress(protocol.KindSystem, "system")
		e.Recipients = []protocol.Address{protocol.NewAddress(protocol.KindAgent, protocol.All)}
		e.Subject = "task_complete"
		e.Body = finishMessage
	})
	if err != nil {
		return
	}
	for _, c := range contributors {
		// Only skip self; a non-owner swarm completing the task must still
		// notify the owner entry, not skip it (§4.7, §8 scenario 4).
		if c == r.localSwarm {
			continue
		}
		go func(swarm string) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := r.router.Send(ctx, env, t.Owner, contributors); err != nil {
				r.log.Warn("best-effort completion broadcast to contributor failed", logctx.F("swarm", swarm), logctx.F("err", err))
			}
		}(c)
	}
}

func (r *Runtime) forwardRemote(ctx context.Context, env protocol.Envelope, to protocol.Address, t *Task) {
	if r.router == nil {
		r.log.Warn("no router configured; dropping remote envelope", logctx.F("recipient", to.Name))
		if env.Sender.Kind == protocol.KindAgent {
			r.sendSystemResponse(env.TaskID, env.Sender.Local(), protocol.SubjectRouterError, "interswarm routing is not configured")
		}
		return
	}
	// leg.Recipient keeps its "local@swarm" form so Router.Send can read
	// the target swarm off it; Send itself strips the swarm suffix before
	// putting the recipient on the wire, since a peer only ever sees a
	// bare local name (§8 round-trip law: payload.recipient.name == agent).
	leg := env
	leg.Recipient = to
	t.addContributor(to.Swarm())
	if err := r.router.Send(ctx, leg, t.Owner, t.Contributors()); err != nil {
		r.sendSystemResponse(env.TaskID, env.Sender.Local(), protocol.SubjectRouterError, err.Error())
	}
}
