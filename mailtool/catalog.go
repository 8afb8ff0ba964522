package mailtool

import (
	"fmt"
	"strings"

	"github.com/mail-swarm/mail/protocol"
)

// Convert translates a single tool.Call into an outbound Envelope per §4.2.
// sender is the calling agent's address; commTargets is the set of
// recipient names that agent may legally address (§3 invariant 3);
// lastRequestID is the request_id the runtime has recorded for a prior
// inbound request from target, used to correlate send_response calls with
// the request they answer (the tool's own arguments never carry it). taskID
// scopes the new envelope.
//
// Calls that fail validation return a non-nil *protocol.Error instead of an
// envelope; per §4.2 these never leave the runtime as malformed envelopes —
// callers convert the error into a ::tool_call_error:: response addressed
// back at sender.
func Convert(call Call, sender protocol.Address, commTargets []string, lastRequestID func(target string) string, taskID string) (protocol.Envelope, error) {
	switch Name(call.Name) {
	case SendRequest:
		return buildAddressed(call, sender, commTargets, protocol.KindRequest, taskID, "")
	case SendResponse:
		target, _ := call.StringArg("target")
		reqID := ""
		if lastRequestID != nil {
			reqID = lastRequestID(target)
		}
		return buildAddressed(call, sender, commTargets, protocol.KindResponse, taskID, reqID)
	case SendInterrupt:
		return buildFanout(call, sender, commTargets, protocol.KindInterrupt, taskID)
	case SendBroadcast:
		return buildAllBroadcast(call, sender, taskID, protocol.KindBroadcast)
	case TaskComplete:
		finish, ok := call.StringArg("finish_message")
		if !ok {
			return protocol.Envelope{}, fmt.Errorf("task_complete requires finish_message")
		}
		return protocol.Construct(protocol.KindTaskComplete, taskID, func(e *protocol.Envelope) {
			e.Sender = sender
			e.Recipients = []protocol.Address{protocol.NewAddress(protocol.KindAgent, protocol.All)}
			e.Subject = "task_complete"
			e.Body = finish
			e.BroadcastID = call.ID
		})
	case SendInterswarmBroadcast:
		subject, _ := call.StringArg("subject")
		body, _ := call.StringArg("body")
		targets, _ := call.StringSliceArg("target_swarms")
		recipients := make([]protocol.Address, 0, len(targets))
		for _, sw := range targets {
			recipients = append(recipients, protocol.NewAddress(protocol.KindAgent, protocol.All+"@"+sw))
		}
		if len(recipients) == 0 {
			return protocol.Envelope{}, fmt.Errorf("send_interswarm_broadcast requires at least one target swarm")
		}
		return protocol.Construct(protocol.KindBroadcast, taskID, func(e *protocol.Envelope) {
			e.Sender = sender
			e.Recipients = recipients
			e.Subject = subject
			e.Body = body
			e.BroadcastID = call.ID
		})
	case AcknowledgeBroadcast, IgnoreBroadcast, AwaitMessage, DiscoverSwarms, Help:
		// These tools never produce an outbound envelope; the runtime
		// handles their side effects (memory record, idle flag, registry
		// discovery, help text) directly against the call.
		return protocol.Envelope{}, nil
	default:
		return protocol.Envelope{}, fmt.Errorf("%s is not a MAIL tool", call.Name)
	}
}

func buildAddressed(call Call, sender protocol.Address, commTargets []string, kind protocol.EnvelopeKind, taskID, requestID string) (protocol.Envelope, error) {
	target, ok := call.StringArg("target")
	if !ok || target == "" {
		return protocol.Envelope{}, fmt.Errorf("%s requires target", call.Name)
	}
	if !targetAllowed(target, commTargets) {
		return protocol.Envelope{}, forbiddenError(target)
	}
	subject, _ := call.StringArg("subject")
	body, _ := call.StringArg("body")
	return protocol.Construct(kind, taskID, func(e *protocol.Envelope) {
		e.Sender = sender
		e.Recipient = protocol.NewAddress(protocol.KindAgent, target)
		e.Subject = subject
		e.Body = body
		if kind == protocol.KindRequest {
			e.RequestID = call.ID
		} else {
			e.RequestID = requestID
		}
	})
}

func buildFanout(call Call, sender protocol.Address, commTargets []string, kind protocol.EnvelopeKind, taskID string) (protocol.Envelope, error) {
	target, ok := call.StringArg("target")
	if !ok || target == "" {
		return protocol.Envelope{}, fmt.Errorf("%s requires target", call.Name)
	}
	if !targetAllowed(target, commTargets) {
		return protocol.Envelope{}, forbiddenError(target)
	}
	subject, _ := call.StringArg("subject")
	body, _ := call.StringArg("body")
	return protocol.Construct(kind, taskID, func(e *protocol.Envelope) {
		e.Sender = sender
		e.Recipients = []protocol.Address{protocol.NewAddress(protocol.KindAgent, target)}
		e.Subject = subject
		e.Body = body
		e.InterruptID = call.ID
	})
}

func buildAllBroadcast(call Call, sender protocol.Address, taskID string, kind protocol.EnvelopeKind) (protocol.Envelope, error) {
	subject, _ := call.StringArg("subject")
	body, _ := call.StringArg("body")
	return protocol.Construct(kind, taskID, func(e *protocol.Envelope) {
		e.Sender = sender
		e.Recipients = []protocol.Address{protocol.NewAddress(protocol.KindAgent, protocol.All)}
		e.Subject = subject
		e.Body = body
		e.BroadcastID = call.ID
	})
}

func targetAllowed(target string, commTargets []string) bool {
	bare := target
	if idx := strings.IndexByte(target, '@'); idx >= 0 {
		// Remote addresses are authorized by name@swarm matching a
		// comm_target entry written the same way; the bare local name
		// alone never authorizes a remote target.
		for _, t := range commTargets {
			if t == target {
				return true
			}
		}
		return false
	}
	for _, t := range commTargets {
		if t == bare || t == protocol.All {
			return true
		}
	}
	return false
}

func forbiddenError(target string) error {
	return &protocol.Error{
		Code:    protocol.CodeTargetForbidden,
		Message: fmt.Sprintf("recipient %q is outside the caller's comm_targets", target),
	}
}
