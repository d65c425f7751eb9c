package model

// Tool represents a tool definition in requests and a tool call in responses
// and streaming deltas.
type Tool struct {
	Id       string    `json:"id,omitempty"`
	Type     string    `json:"type,omitempty"`
	Function *Function `json:"function,omitempty"`
	// Index identifies which tool call a streamed delta belongs to.
	Index *int `json:"index,omitempty"`
}

// Function carries the schema (requests) or the call arguments (responses).
type Function struct {
	Description string `json:"description,omitempty"`
	Name        string `json:"name,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
	Arguments   string `json:"arguments,omitempty"`
}
