package core

import "fmt"

// AgentRequest names the agent to run plus the instructions and query it is
// constructed and executed with. One instance per inbound call; treat it as
// immutable once received.
type AgentRequest struct {
	AgentName    string `json:"agent_name"`
	Instructions string `json:"instructions"`
	Query        string `json:"query"`
}

// Validate checks the invariants the dispatcher relies on.
func (r AgentRequest) Validate() error {
	if r.AgentName == "" {
		return fmt.Errorf("%w: agent_name must not be empty", ErrInvalidRequest)
	}

	return nil
}

// AgentResponse is produced exactly once per request and mirrors the
// request's agent name.
type AgentResponse struct {
	AgentName string `json:"agent_name"`
	Response  string `json:"response"`
}

// NewAgentResponse builds the response for req carrying text.
func NewAgentResponse(req AgentRequest, text string) AgentResponse {
	return AgentResponse{AgentName: req.AgentName, Response: text}
}
