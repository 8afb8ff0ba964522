package agentfn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mail-swarm/mail/action"
	"github.com/mail-swarm/mail/mailtool"
)

func TestBuildToolSpecsIncludesEveryBuiltinTool(t *testing.T) {
	specs := BuildToolSpecs(nil, nil)
	assert.Len(t, specs, len(mailtool.All))
	names := make(map[string]bool, len(specs))
	for _, s := range specs {
		names[s.Name] = true
		assert.NotNil(t, s.Schema)
	}
	assert.True(t, names[string(mailtool.SendRequest)])
	assert.True(t, names[string(mailtool.Help)])
}

type fetchArgs struct {
	URL string `json:"url" jsonschema:"required"`
}
type fetchAction struct{}

func (fetchAction) Name() string        { return "fetch_url" }
func (fetchAction) Description() string { return "fetches a URL" }
func (fetchAction) Execute(context.Context, fetchArgs) (*action.Result, error) {
	return action.TextResult("ok"), nil
}

func TestBuildToolSpecsAppendsDeclaredActions(t *testing.T) {
	reg := action.NewRegistry()
	action.Register[fetchArgs](reg, fetchAction{}, false)

	specs := BuildToolSpecs([]string{"fetch_url"}, reg)
	require.Len(t, specs, len(mailtool.All)+1)
	last := specs[len(specs)-1]
	assert.Equal(t, "fetch_url", last.Name)
	assert.NotNil(t, last.Schema)
}

func TestBuildToolSpecsSkipsUndeclaredOrUnknownActionNames(t *testing.T) {
	reg := action.NewRegistry()
	specs := BuildToolSpecs([]string{"nonexistent"}, reg)
	assert.Len(t, specs, len(mailtool.All), "an action name with no registry entry contributes no spec")
}

func TestBuildToolSpecsNilRegistryContributesNoActions(t *testing.T) {
	specs := BuildToolSpecs([]string{"anything"}, nil)
	assert.Len(t, specs, len(mailtool.All))
}

func TestSchemaToMapHandlesNilSchema(t *testing.T) {
	m := schemaToMap(nil)
	assert.Equal(t, map[string]interface{}{"type": "object"}, m)
}

func TestSchemaToMapConvertsRealSchema(t *testing.T) {
	reg := action.NewRegistry()
	action.Register[fetchArgs](reg, fetchAction{}, false)
	schema, ok := reg.Schema("fetch_url")
	require.True(t, ok)

	m := schemaToMap(schema)
	assert.NotEmpty(t, m)
	assert.Contains(t, m, "properties")
}
