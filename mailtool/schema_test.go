package mailtool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaForKnownToolsProducesSchema(t *testing.T) {
	for _, name := range All {
		if name == Help {
			continue // help has no SchemaFor entry; HelpText still covers it
		}
		s := SchemaFor(name)
		if name == AcknowledgeBroadcast || name == IgnoreBroadcast || name == AwaitMessage {
			assert.NotNil(t, s, name)
			continue
		}
		assert.NotNil(t, s, "expected a schema for %s", name)
	}
}

func TestSchemaForUnknownToolReturnsNil(t *testing.T) {
	assert.Nil(t, SchemaFor(Name("not_a_tool")))
}

func TestHelpTextCoversEveryBuiltinTool(t *testing.T) {
	for _, name := range All {
		assert.NotEmpty(t, HelpText(name), "missing help text for %s", name)
	}
}

func TestHelpTextUnknownToolReturnsEmpty(t *testing.T) {
	assert.Empty(t, HelpText(Name("not_a_tool")))
}
