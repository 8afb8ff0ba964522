package protocol

import (
	"fmt"
	"strings"
)

// RenderForAgent produces the deterministic XML-like block that becomes an
// agent's history entry for a received envelope. The rendering depends only
// on the envelope's own fields (never on wall-clock time or randomness), so
// render_for_agent∘Construct is a pure, replayable function: identical
// envelopes render byte-identical blocks.
func RenderForAgent(env Envelope, to Address) string {
	var b strings.Builder
	b.WriteString("<incoming_message>\n")
	fmt.Fprintf(&b, "  <timestamp>%s</timestamp>\n", env.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"))
	fmt.Fprintf(&b, "  <from type=\"%s\">%s</from>\n", env.Sender.Kind, escapeXML(env.Sender.Name))
	fmt.Fprintf(&b, "  <to type=\"%s\">%s</to>\n", to.Kind, escapeXML(to.Name))
	fmt.Fprintf(&b, "  <subject>%s</subject>\n", escapeXML(env.Subject))
	fmt.Fprintf(&b, "  <body>%s</body>\n", escapeXML(env.Body))
	b.WriteString("</incoming_message>")
	return b.String()
}

func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return r.Replace(s)
}

// HistoryRole is the role tag on an agent history entry.
type HistoryRole string

const (
	RoleUser      HistoryRole = "user"
	RoleAssistant HistoryRole = "assistant"
	RoleTool      HistoryRole = "tool"
	RoleSystem    HistoryRole = "system"
)

// HistoryEntry is one item in an agent's per-task ordered history. The head
// of a freshly-woken agent's history is the rendered XML of the envelope
// that woke it; subsequent entries record its tool calls and their results
// so the next invocation reproduces its reasoning context.
type HistoryEntry struct {
	Role    HistoryRole `json:"role"`
	Content string      `json:"content"`
}
