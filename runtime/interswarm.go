package runtime

import (
	"github.com/mail-swarm/mail/logctx"
	"github.com/mail-swarm/mail/protocol"
)

// HandleInterswarmResponse is the runtime-side half of the router's inbound
// path (§4.7, §6.1). It does not resolve the task's pending future
// directly — the reference implementation historically did, but the
// resolved open question (§9 DESIGN NOTES) is that a remote response is an
// ordinary input to the local supervisor, which alone decides when the
// task is done via its own task_complete call. This keeps a single code
// path (completeTask) as the only place a future is ever resolved.
func (r *Runtime) HandleInterswarmResponse(env protocol.Envelope) {
	t, ok := r.getTask(env.TaskID)
	if !ok {
		r.log.Warn("interswarm response for unknown task", logctx.F("task_id", env.TaskID))
		return
	}
	t.addContributor(r.localSwarm)
	r.q.push(env)
}
