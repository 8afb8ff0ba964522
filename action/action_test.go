package action

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mail-swarm/mail/mailtool"
)

type weatherArgs struct {
	City string `json:"city" jsonschema:"required"`
}

type weatherAction struct{}

func (weatherAction) Name() string        { return "get_weather" }
func (weatherAction) Description() string { return "fetches current weather for a city" }
func (weatherAction) Execute(_ context.Context, in weatherArgs) (*Result, error) {
	if in.City == "" {
		return ErrorResult("city is required"), nil
	}
	return TextResult("sunny in " + in.City), nil
}

type approveArgs struct {
	Reason string `json:"reason"`
}

type approveAction struct{}

func (approveAction) Name() string        { return "request_approval" }
func (approveAction) Description() string { return "pauses for human approval" }
func (approveAction) Execute(_ context.Context, _ approveArgs) (*Result, error) {
	panic("breakpoint actions must never have Execute called")
}

func TestRegisterAndExecute(t *testing.T) {
	r := NewRegistry()
	Register[weatherArgs](r, weatherAction{}, false)

	require.True(t, r.Has("get_weather"))
	assert.False(t, r.IsBreakpoint("get_weather"))

	result, err := r.Execute(context.Background(), mailtool.Call{
		Name: "get_weather",
		Args: map[string]interface{}{"city": "lisbon"},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "sunny in lisbon", result.Content)
}

func TestExecuteSurfacesActionLevelError(t *testing.T) {
	r := NewRegistry()
	Register[weatherArgs](r, weatherAction{}, false)

	result, err := r.Execute(context.Background(), mailtool.Call{Name: "get_weather", Args: map[string]interface{}{}})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestExecuteUnregisteredNameFails(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), mailtool.Call{Name: "nope"})
	require.Error(t, err)
}

func TestBreakpointActionsAreFlaggedNotExecuted(t *testing.T) {
	r := NewRegistry()
	Register[approveArgs](r, approveAction{}, true)

	assert.True(t, r.Has("request_approval"))
	assert.True(t, r.IsBreakpoint("request_approval"))
	// The runtime is responsible for never calling Execute on a breakpoint
	// action; Registry itself doesn't forbid it, so we don't call Execute
	// here (approveAction.Execute panics to make misuse loud elsewhere).
}

func TestNamesPreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	Register[weatherArgs](r, weatherAction{}, false)
	Register[approveArgs](r, approveAction{}, true)

	assert.Equal(t, []string{"get_weather", "request_approval"}, r.Names())
}

func TestSchemaReturnsGeneratedSchema(t *testing.T) {
	r := NewRegistry()
	Register[weatherArgs](r, weatherAction{}, false)

	s, ok := r.Schema("get_weather")
	require.True(t, ok)
	require.NotNil(t, s)

	_, ok = r.Schema("missing")
	assert.False(t, ok)
}

func TestRegisterOverwritingSameNameKeepsOrderStable(t *testing.T) {
	r := NewRegistry()
	Register[weatherArgs](r, weatherAction{}, false)
	Register[weatherArgs](r, weatherAction{}, true) // re-register same name, now as breakpoint

	assert.Equal(t, []string{"get_weather"}, r.Names())
	assert.True(t, r.IsBreakpoint("get_weather"))
}
