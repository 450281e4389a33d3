package core

import (
	"context"
	"testing"
)

func TestRunContext_EmitEventStampsRunAndAuthor(t *testing.T) {
	rc, emitCh := newRunContextForTest()

	if err := rc.EmitEvent(Event{Content: &Content{Role: RoleAssistant}}); err != nil {
		t.Fatalf("EmitEvent error: %v", err)
	}

	received := <-emitCh
	if received.RunID != "run-1" || received.Author != "echo" {
		t.Fatalf("event not stamped: %+v", received)
	}
	if rc.Query() != "hello" {
		t.Fatalf("unexpected query %q", rc.Query())
	}
}

func TestRunContext_EmitAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rc := NewRunContext(ctx, "run-2", AgentInfo{Name: "a"}, Content{}, 0, make(chan Event), nil)
	cancel()

	if err := rc.EmitMessage("late"); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestToolContext_Accessors(t *testing.T) {
	rc, _ := newRunContextForTest()
	tc := NewToolContext(rc, "call-9")

	if tc.RunID() != "run-1" || tc.FunctionCallID() != "call-9" || tc.AgentName() != "echo" {
		t.Fatalf("unexpected accessors: %s %s %s", tc.RunID(), tc.FunctionCallID(), tc.AgentName())
	}
	if tc.Context() != rc.Context {
		t.Fatal("tool context must share the run context")
	}
}

func TestRunContext_WithContext(t *testing.T) {
	rc, _ := newRunContextForTest()
	ctx, cancel := context.WithCancel(context.Background())
	cp := rc.WithContext(ctx)
	cancel()

	if cp.Err() == nil {
		t.Fatalf("expected copy to observe cancellation")
	}
	if rc.Err() != nil {
		t.Fatalf("original context must be untouched")
	}
	if cp.Limiter != rc.Limiter || cp.RunID != rc.RunID {
		t.Fatalf("copy must share run scope")
	}
}
