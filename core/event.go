package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is the unit of communication between a running agent and the
// executor. After emission it should be treated as immutable. Content may
// hold text, function calls or function responses.
type Event struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Content   *Content  `json:"content,omitempty"`
	Partial   bool      `json:"partial,omitempty"`
}

// NewEvent creates a bare event authored by 'author' bound to a run.
func NewEvent(runID, author string) Event {
	return Event{
		ID:        NewID(),
		RunID:     runID,
		Author:    author,
		Timestamp: time.Now().UTC(),
	}
}

// NewMessageEvent creates an assistant message event with a single text part.
func NewMessageEvent(runID, author, message string) Event {
	e := NewEvent(runID, author)
	e.Content = &Content{Role: RoleAssistant, Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewUserMessageEvent creates a user-authored text message event.
func NewUserMessageEvent(runID, message string) Event {
	e := NewEvent(runID, RoleUser)
	e.Content = &Content{Role: RoleUser, Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewFunctionCallEvent wraps the function calls an agent requested in one turn.
func NewFunctionCallEvent(runID, author string, content Content) Event {
	e := NewEvent(runID, author)
	e.Content = &content
	return e
}

// NewFunctionResponseEvent records the result (or error) of a tool invocation.
// If err is non-nil its message is copied into the response Error field.
func NewFunctionResponseEvent(runID, author, id, functionName string, result any, err error) Event {
	e := NewEvent(runID, author)
	fr := FunctionResponse{ID: id, Name: functionName, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	e.Content = &Content{Role: RoleTool, Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}
	return e
}

// NewID generates a new unique identifier for runs and events.
func NewID() string { return uuid.NewString() }

// GetFunctionCalls returns the FunctionCall parts of the event in order.
func (e Event) GetFunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}
	var calls []FunctionCall
	for _, p := range e.Content.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// GetFunctionResponses returns the FunctionResponse parts of the event in order.
func (e Event) GetFunctionResponses() []FunctionResponse {
	if e.Content == nil {
		return nil
	}
	var responses []FunctionResponse
	for _, p := range e.Content.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// IsFinalResponse reports whether the event completes an assistant turn:
// assistant text with no pending function calls or responses.
func (e Event) IsFinalResponse() bool {
	if e.Content == nil || e.Content.Role != RoleAssistant {
		return false
	}

	return !e.Partial &&
		len(e.GetFunctionCalls()) == 0 &&
		len(e.GetFunctionResponses()) == 0
}

// Text concatenates the event's text parts.
func (e Event) Text() string {
	if e.Content == nil {
		return ""
	}
	return e.Content.Text()
}

// FinalOutput returns the text of the last final response among events.
func FinalOutput(events []Event) string {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].IsFinalResponse() {
			return events[i].Text()
		}
	}
	return ""
}

func joinText(parts []Part) string {
	var b strings.Builder
	for _, p := range parts {
		if tp, ok := p.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}
