package agent

import (
	"fmt"

	"github.com/newsdesk-io/newsdesk/internal/tool"
	"github.com/newsdesk-io/newsdesk/internal/toolcall"
)

const toolSystemPrompt = `
You are a function calling AI model. You are provided with function signatures within <%[1]s></%[1]s> XML tags.
You may call one or more functions to assist with the user query. Don't make assumptions or hallucinate what values to plug
into functions. All function arguments must be passed within the "arguments" key as a JSON object.
Pay special attention to the properties 'type'. You should use those types as JSON values.
For each function call return a json object with function name and arguments within <%[2]s></%[2]s>
XML tags as follows:

<%[2]s>
{"name": <function-name>,"arguments": <args-dict>,  "id": <monotonically-increasing-id>}
</%[2]s>


Only use information from tools if you use the tools. Here are the available tools:

<%[1]s>
%[3]s
</%[1]s>
`

// BuildSystemPrompt renders the tool-calling instructions with every
// registered signature.
func BuildSystemPrompt(tools *tool.Registry) string {
	var sigs string
	if tools != nil {
		sigs = tools.Signatures()
	}
	return fmt.Sprintf(toolSystemPrompt, toolcall.TagTools, toolcall.TagToolCalls, sigs)
}
