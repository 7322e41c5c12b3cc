package protocol

// ToolCall is one invocation requested by the model, decoded from a
// delimiter-tagged JSON block.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Clone returns a copy of the call with its own arguments map.
// Slice values are copied one level deep.
func (c ToolCall) Clone() ToolCall {
	out := ToolCall{ID: c.ID, Name: c.Name}
	if c.Arguments != nil {
		out.Arguments = make(map[string]any, len(c.Arguments))
		for k, v := range c.Arguments {
			if s, ok := v.([]any); ok {
				v = append([]any(nil), s...)
			}
			out.Arguments[k] = v
		}
	}
	return out
}

// Observations maps a tool call ID to its execution result. Failed calls
// map to an ErrorObservation.
type Observations map[string]any

// ErrorObservation is recorded in place of a result when a call fails.
type ErrorObservation struct {
	Error string `json:"error"`
}

// ToolDefinition describes a tool available to the LLM (OpenAI function-calling format).
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function ToolFunctionSchema `json:"function"`
}

// ToolFunctionSchema is the function schema within a tool definition.
type ToolFunctionSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NewToolDefinition creates a ToolDefinition in OpenAI function-calling format.
func NewToolDefinition(name, description string, parameters map[string]any) ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: ToolFunctionSchema{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}
