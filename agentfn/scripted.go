package agentfn

import (
	"context"
	"fmt"

	"github.com/mail-swarm/mail/mailtool"
	"github.com/mail-swarm/mail/protocol"
	"github.com/mail-swarm/mail/runtime"
)

// Step is one scripted turn: given the number of times this AgentFn has
// already been invoked (one counter shared by every task it serves),
// produce the agent's reply and any tool calls.
type Step func(turn int, history []protocol.HistoryEntry) (text *string, calls []mailtool.Call)

// NewScripted builds a deterministic runtime.AgentFn driven by a fixed
// sequence of Steps, useful for tests and examples that must not depend on
// a live LM backend. Calling the agent past the end of steps repeats the
// last step, so a supervisor that keeps a conversation open doesn't panic.
func NewScripted(steps ...Step) runtime.AgentFn {
	if len(steps) == 0 {
		panic("agentfn: NewScripted requires at least one step")
	}
	turn := 0
	return func(ctx context.Context, history []protocol.HistoryEntry) (*string, []mailtool.Call, error) {
		idx := turn
		if idx >= len(steps) {
			idx = len(steps) - 1
		}
		turn++
		text, calls := steps[idx](turn-1, history)
		return text, calls, nil
	}
}

// Text is a convenience Step constructor for a plain reply with no tool
// calls.
func Text(s string) Step {
	return func(int, []protocol.HistoryEntry) (*string, []mailtool.Call) {
		t := s
		return &t, nil
	}
}

// Respond is a convenience Step constructor that replies to the agent named
// to via send_response.
func Respond(to, subject, body string) Step {
	return func(int, []protocol.HistoryEntry) (*string, []mailtool.Call) {
		t := fmt.Sprintf("responding to %s", to)
		return &t, []mailtool.Call{{
			Name: string(mailtool.SendResponse),
			Args: map[string]interface{}{"target": to, "subject": subject, "body": body},
		}}
	}
}

// Complete is a convenience Step constructor that ends the task via
// task_complete.
func Complete(finishMessage string) Step {
	return func(int, []protocol.HistoryEntry) (*string, []mailtool.Call) {
		t := finishMessage
		return &t, []mailtool.Call{{
			Name: string(mailtool.TaskComplete),
			Args: map[string]interface{}{"finish_message": finishMessage},
		}}
	}
}
