package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructRequestRequiresSenderRecipientSubject(t *testing.T) {
	_, err := Construct(KindRequest, "task-1", func(e *Envelope) {
		e.Recipient = NewAddress(KindAgent, "worker")
		e.Subject = "hello"
	})
	require.Error(t, err, "missing sender should be rejected")

	_, err = Construct(KindRequest, "task-1", func(e *Envelope) {
		e.Sender = NewAddress(KindAgent, "planner")
		e.Subject = "hello"
	})
	require.Error(t, err, "missing recipient should be rejected")

	_, err = Construct(KindRequest, "task-1", func(e *Envelope) {
		e.Sender = NewAddress(KindAgent, "planner")
		e.Recipient = NewAddress(KindAgent, "worker")
	})
	require.Error(t, err, "missing subject should be rejected")

	env, err := Construct(KindRequest, "task-1", func(e *Envelope) {
		e.Sender = NewAddress(KindAgent, "planner")
		e.Recipient = NewAddress(KindAgent, "worker")
		e.Subject = "hello"
	})
	require.NoError(t, err)
	assert.NotEmpty(t, env.ID)
	assert.False(t, env.Timestamp.IsZero())
	assert.Equal(t, "task-1", env.TaskID)
}

func TestConstructRejectsEmptyTaskID(t *testing.T) {
	_, err := Construct(KindRequest, "", func(e *Envelope) {
		e.Sender = NewAddress(KindAgent, "planner")
		e.Recipient = NewAddress(KindAgent, "worker")
		e.Subject = "hello"
	})
	require.Error(t, err)
}

func TestConstructBroadcastRequiresNonEmptyRecipients(t *testing.T) {
	_, err := Construct(KindBroadcast, "task-1", func(e *Envelope) {
		e.Sender = NewAddress(KindAgent, "planner")
		e.Subject = "status"
		e.Body = "update"
	})
	require.Error(t, err)

	env, err := Construct(KindBroadcast, "task-1", func(e *Envelope) {
		e.Sender = NewAddress(KindAgent, "planner")
		e.Recipients = []Address{NewAddress(KindAgent, All)}
		e.Subject = "status"
		e.Body = "update"
	})
	require.NoError(t, err)
	assert.Len(t, env.Recipients, 1)
}

func TestConstructTaskCompleteMustTargetAllAlone(t *testing.T) {
	_, err := Construct(KindTaskComplete, "task-1", func(e *Envelope) {
		e.Sender = NewAddress(KindAgent, "supervisor")
		e.Recipients = []Address{NewAddress(KindAgent, "worker")}
		e.Subject = "task_complete"
	})
	require.Error(t, err, "task_complete must target exactly [all]")

	_, err = Construct(KindTaskComplete, "task-1", func(e *Envelope) {
		e.Sender = NewAddress(KindAgent, "supervisor")
		e.Recipients = []Address{NewAddress(KindAgent, All), NewAddress(KindAgent, "worker")}
		e.Subject = "task_complete"
	})
	require.Error(t, err, "task_complete must not carry extra recipients alongside all")

	env, err := Construct(KindTaskComplete, "task-1", func(e *Envelope) {
		e.Sender = NewAddress(KindAgent, "supervisor")
		e.Recipients = []Address{NewAddress(KindAgent, All)}
		e.Subject = "task_complete"
		e.Body = "done"
	})
	require.NoError(t, err)
	assert.Equal(t, "done", env.Body)
}

func TestConstructRejectsUnknownKind(t *testing.T) {
	_, err := Construct(EnvelopeKind("bogus"), "task-1", func(e *Envelope) {
		e.Sender = NewAddress(KindAgent, "planner")
	})
	require.Error(t, err)
}

func TestPriorityTierOrdering(t *testing.T) {
	system := Envelope{Sender: NewAddress(KindSystem, "system")}
	admin := Envelope{Sender: NewAddress(KindAdmin, "root")}
	user := Envelope{Sender: NewAddress(KindUser, "alice")}
	interrupt := Envelope{Sender: NewAddress(KindAgent, "a"), Kind: KindInterrupt}
	broadcast := Envelope{Sender: NewAddress(KindAgent, "a"), Kind: KindBroadcast}
	taskComplete := Envelope{Sender: NewAddress(KindAgent, "a"), Kind: KindTaskComplete}
	request := Envelope{Sender: NewAddress(KindAgent, "a"), Kind: KindRequest}
	response := Envelope{Sender: NewAddress(KindAgent, "a"), Kind: KindResponse}

	assert.Less(t, system.PriorityTier(), admin.PriorityTier())
	assert.Equal(t, admin.PriorityTier(), user.PriorityTier())
	assert.Less(t, admin.PriorityTier(), interrupt.PriorityTier())
	assert.Less(t, interrupt.PriorityTier(), broadcast.PriorityTier())
	assert.Equal(t, broadcast.PriorityTier(), taskComplete.PriorityTier())
	assert.Less(t, broadcast.PriorityTier(), request.PriorityTier())
	assert.Equal(t, request.PriorityTier(), response.PriorityTier())
}

func TestExpandRecipientsExpandsAll(t *testing.T) {
	env := Envelope{
		Kind:       KindBroadcast,
		Recipients: []Address{NewAddress(KindAgent, All)},
	}
	got := env.ExpandRecipients([]string{"planner", "worker"})
	require.Len(t, got, 2)
	names := []string{got[0].Name, got[1].Name}
	assert.ElementsMatch(t, []string{"planner", "worker"}, names)
}

func TestExpandRecipientsLeavesExplicitTargetsAlone(t *testing.T) {
	env := Envelope{
		Kind:       KindInterrupt,
		Recipients: []Address{NewAddress(KindAgent, "worker")},
	}
	got := env.ExpandRecipients([]string{"planner", "worker"})
	require.Len(t, got, 1)
	assert.Equal(t, "worker", got[0].Name)
}

func TestExpandRecipientsRequestReturnsSingleRecipient(t *testing.T) {
	env := Envelope{
		Kind:      KindRequest,
		Recipient: NewAddress(KindAgent, "worker"),
	}
	got := env.ExpandRecipients([]string{"planner", "worker"})
	require.Len(t, got, 1)
	assert.Equal(t, "worker", got[0].Name)
}
