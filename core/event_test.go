package core

import (
	"errors"
	"testing"
)

func TestEvent_ConstructorsAndMethods(t *testing.T) {
	e := NewEvent("run-123", "authorA")
	if e.Author != "authorA" || e.RunID != "run-123" || e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("NewEvent did not initialize fields correctly: %+v", e)
	}

	msg := NewMessageEvent("run-123", "agent1", "hello world")
	if !msg.IsFinalResponse() || msg.Text() != "hello world" {
		t.Fatalf("NewMessageEvent malformed: %+v", msg)
	}

	user := NewUserMessageEvent("run-123", "hi")
	if user.IsFinalResponse() {
		t.Fatal("user message must not count as final response")
	}

	call := NewFunctionCallEvent("run-123", "agent1", Content{
		Role:  RoleAssistant,
		Parts: []Part{FunctionCallPart{FunctionCall: FunctionCall{ID: "c1", Name: "fetch_date"}}},
	})
	if calls := call.GetFunctionCalls(); len(calls) != 1 || calls[0].Name != "fetch_date" {
		t.Fatalf("GetFunctionCalls extraction failed: %+v", calls)
	}
	if call.IsFinalResponse() {
		t.Fatal("function call event must not be final")
	}

	resp := NewFunctionResponseEvent("run-123", "agent1", "c1", "fetch_date", nil, errors.New("boom"))
	if rs := resp.GetFunctionResponses(); len(rs) != 1 || rs[0].Error != "boom" {
		t.Fatalf("function response extraction failed: %+v", rs)
	}
}

func TestFinalOutput(t *testing.T) {
	partial := NewMessageEvent("r", "a", "par")
	partial.Partial = true

	events := []Event{
		NewUserMessageEvent("r", "question"),
		NewMessageEvent("r", "a", "first"),
		NewFunctionResponseEvent("r", "a", "c1", "t", "x", nil),
		NewMessageEvent("r", "a", "second"),
		partial,
	}

	if got := FinalOutput(events); got != "second" {
		t.Fatalf("expected second, got %q", got)
	}
	if got := FinalOutput(nil); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}
