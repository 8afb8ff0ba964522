package agentfn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFencedToolCallsParsesSingleBlock(t *testing.T) {
	text := "I'll delegate this.\n```tool_call\n{\"name\": \"send_request\", \"arguments\": {\"target\": \"worker\", \"subject\": \"s\", \"body\": \"b\"}}\n```\n"
	calls := extractFencedToolCalls(text)

	require.Len(t, calls, 1)
	assert.Equal(t, "send_request", calls[0].Name)
	assert.Equal(t, "worker", calls[0].Args["target"])
	assert.NotEmpty(t, calls[0].ID)
}

func TestExtractFencedToolCallsParsesMultipleBlocks(t *testing.T) {
	text := "```tool_call\n{\"name\": \"acknowledge_broadcast\", \"arguments\": {}}\n```\nsome text\n```tool_call\n{\"name\": \"task_complete\", \"arguments\": {\"finish_message\": \"done\"}}\n```"
	calls := extractFencedToolCalls(text)

	require.Len(t, calls, 2)
	assert.Equal(t, "acknowledge_broadcast", calls[0].Name)
	assert.Equal(t, "task_complete", calls[1].Name)
}

func TestExtractFencedToolCallsSkipsMalformedBlocks(t *testing.T) {
	text := "```tool_call\nnot json at all\n```"
	calls := extractFencedToolCalls(text)
	assert.Empty(t, calls)
}

func TestExtractFencedToolCallsReturnsNilWhenNoBlocksPresent(t *testing.T) {
	calls := extractFencedToolCalls("just a plain message, nothing to call")
	assert.Nil(t, calls)
}

func TestExtractFencedToolCallsRequiresNonEmptyName(t *testing.T) {
	text := "```tool_call\n{\"name\": \"\", \"arguments\": {}}\n```"
	calls := extractFencedToolCalls(text)
	assert.Empty(t, calls, "a block with an empty name is not a usable tool call")
}
