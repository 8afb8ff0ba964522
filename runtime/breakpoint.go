package runtime

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/mail-swarm/mail/mailtool"
	"github.com/mail-swarm/mail/protocol"
)

// enterBreakpoint implements §4.3's breakpoint path: the underlying action
// function is never run. Instead the call is added to the task's pending
// breakpoint list; the task's queued envelopes are stashed the first time a
// task pauses (a second breakpoint call arising from the same agent turn
// joins the existing stash rather than re-evicting an already-empty
// queue), a breakpoint_tool_call event is recorded (which also reaches any
// open submit_and_stream subscriber — the "resolves the pending stream but
// not the pending future" behavior falls out of that event simply being
// appended), and the task is marked paused.
func (r *Runtime) enterBreakpoint(t *Task, taskID, callerAgent string, call mailtool.Call) {
	t.mu.Lock()
	if t.breakpoint == nil {
		t.breakpoint = &BreakpointStash{}
	}
	t.breakpoint.Pending = append(t.breakpoint.Pending, PendingBreakpoint{CallerAgent: callerAgent, Call: call})
	alreadyStashed := t.status == StatusPaused
	t.status = StatusPaused
	t.mu.Unlock()

	if !alreadyStashed {
		stashed := r.q.evictTask(taskID)
		t.mu.Lock()
		t.breakpoint.StashedEnvelopes = stashed
		t.mu.Unlock()
	}

	t.events.append(newEvent(taskID, EventBreakpointCall, call.Name, map[string]interface{}{
		"agent": callerAgent,
		"args":  call.Args,
	}))
}

// resumeBreakpoint implements the breakpoint_tool_call resumption mode
// (§4.4): it appends the supplied result(s) as tool-result history entries
// for the original caller(s), restores the stashed queue entries in their
// original relative order, and unpauses the task.
//
// breakpoint_tool_call_result is a JSON-encoded string holding either a
// single object (one pending breakpoint) or an array (one entry per pending
// breakpoint, matched by position) — sniffed with gjson rather than a full
// unmarshal into a concrete type, since the result shape is caller-defined
// and MAIL only needs to know "one or many" to route it.
func (r *Runtime) resumeBreakpoint(t *Task, extras map[string]string) error {
	b := t.takeBreakpoint()
	if b == nil || len(b.Pending) == 0 {
		return fmt.Errorf("runtime: task %q has no stashed breakpoint to resume", t.ID)
	}

	caller := extras["breakpoint_tool_caller"]
	result := extras["breakpoint_tool_call_result"]

	results, err := splitBreakpointResults(result)
	if err != nil {
		return err
	}

	matched := 0
	for i, p := range b.Pending {
		if caller != "" && caller != p.CallerAgent {
			continue
		}
		content := result
		if i < len(results) {
			content = results[i]
		}
		r.history.append(t.ID, p.CallerAgent, protocol.HistoryEntry{Role: protocol.RoleTool, Content: content})
		matched++
	}
	if caller != "" && matched == 0 {
		return fmt.Errorf("runtime: breakpoint_tool_caller %q does not match any stashed breakpoint caller", caller)
	}

	for _, env := range b.StashedEnvelopes {
		r.q.push(env)
	}
	t.setStatus(StatusRunning)
	r.q.wake()
	return nil
}

// splitBreakpointResults sniffs result's JSON shape: a top-level array is
// split into its elements (each re-serialized as compact JSON text), a
// single object/scalar is returned as a one-element slice so the common
// single-breakpoint case needs no array wrapping from the caller.
func splitBreakpointResults(result string) ([]string, error) {
	if result == "" {
		return nil, nil
	}
	parsed := gjson.Parse(result)
	if !parsed.Exists() {
		return nil, fmt.Errorf("runtime: breakpoint_tool_call_result is not valid JSON")
	}
	if !parsed.IsArray() {
		return []string{result}, nil
	}
	var out []string
	parsed.ForEach(func(_, value gjson.Result) bool {
		out = append(out, value.Raw)
		return true
	})
	return out, nil
}
