package braid

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExecuteFlowResolvesToFixedPoint(t *testing.T) {
	counts := dispatchCount{}
	exec := &mockExecutor{name: "mock", replies: []string{"The CEO is [[search('CEO of AMD')]]."}}
	e := New(WithRegistry(testRegistry(t, counts)))

	flow, err := e.Parse(context.Background(), exec, "Who is the CEO of AMD?", "", 0, StrategyReject, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	results, err := e.ExecuteFlow(context.Background(), flow)
	if err != nil {
		t.Fatalf("ExecuteFlow: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if got := results[0].Value; got != "The CEO is Lisa Su." {
		t.Errorf("Value = %q", got)
	}
	if counts["search"] != 1 {
		t.Errorf("search dispatched %d times, want 1", counts["search"])
	}
	if exec.toolCalls != 1 {
		t.Errorf("executor called %d times, want 1", exec.toolCalls)
	}
	for _, n := range results[0].Conversation {
		if ContainsCall(n) {
			t.Error("terminal conversation still holds a call node")
		}
	}
}

func TestExecuteFlowCallFreeReplyIsTerminal(t *testing.T) {
	exec := &mockExecutor{name: "mock", replies: []string{"Just an answer."}}
	e := New(WithRegistry(testRegistry(t, nil)))

	flow, _ := e.Parse(context.Background(), exec, "question", "", 0, StrategyReject, 0)
	results, err := e.ExecuteFlow(context.Background(), flow)
	if err != nil {
		t.Fatalf("ExecuteFlow: %v", err)
	}
	if len(results) != 1 || results[0].Value != "Just an answer." {
		t.Fatalf("results = %+v", results)
	}
}

func TestExecuteFlowUnknownFunctionFatal(t *testing.T) {
	e := New(WithRegistry(testRegistry(t, nil)))
	flow := NewFlow[Node](Queue)
	flow.Push(&FunctionCall{Name: "ghost"})

	_, err := e.ExecuteFlow(context.Background(), flow)
	var uf *ErrUnknownFunction
	if !errors.As(err, &uf) {
		t.Fatalf("err = %v, want *ErrUnknownFunction", err)
	}
	if uf.Name != "ghost" {
		t.Errorf("Name = %q, want ghost", uf.Name)
	}
}

func TestExecuteFlowDispatchFailureContained(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"error return", "Check [[fail('disk')]] done"},
		{"panic", "Check [[panics('oom')]] done"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &mockExecutor{name: "mock", replies: []string{tt.reply}}
			e := New(WithRegistry(testRegistry(t, nil)))

			flow, _ := e.Parse(context.Background(), exec, "q", "", 0, StrategyReject, 0)
			results, err := e.ExecuteFlow(context.Background(), flow)
			if err != nil {
				t.Fatalf("ExecuteFlow: %v", err)
			}
			if len(results) != 1 {
				t.Fatalf("got %d results, want 1", len(results))
			}
			if results[0].Err != nil {
				t.Errorf("Result.Err = %v, want nil", results[0].Err)
			}
			if !strings.Contains(results[0].Value, "could not execute") {
				t.Errorf("Value = %q, want folded error text", results[0].Value)
			}
		})
	}
}

func TestExecuteFlowMultiOccurrenceReplacement(t *testing.T) {
	counts := dispatchCount{}
	exec := &mockExecutor{name: "mock", replies: []string{"A [[echo('hi')]] B [[echo('hi')]] C"}}
	e := New(WithRegistry(testRegistry(t, counts)))

	flow, _ := e.Parse(context.Background(), exec, "q", "", 0, StrategyReject, 0)
	results, err := e.ExecuteFlow(context.Background(), flow)
	if err != nil {
		t.Fatalf("ExecuteFlow: %v", err)
	}
	if got := results[0].Value; got != "A hi B hi C" {
		t.Errorf("Value = %q, want %q", got, "A hi B hi C")
	}
	if counts["echo"] != 1 {
		t.Errorf("echo dispatched %d times, want 1 (both occurrences share one dispatch)", counts["echo"])
	}
}

func TestExecuteFlowRoundCeiling(t *testing.T) {
	// loop's result text is itself a call marker, so every round spawns a
	// fresh call until the ceiling flattens it.
	counts := dispatchCount{}
	exec := &mockExecutor{name: "mock", replies: []string{"[[loop('x')]]"}}
	e := New(WithRegistry(testRegistry(t, counts)), WithToolRoundLimit(2))

	flow, _ := e.Parse(context.Background(), exec, "q", "", 0, StrategyReject, 0)
	results, err := e.ExecuteFlow(context.Background(), flow)
	if err != nil {
		t.Fatalf("ExecuteFlow: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if counts["loop"] != 2 {
		t.Errorf("loop dispatched %d times, want exactly the ceiling of 2", counts["loop"])
	}
	if exec.toolCalls != 1 {
		t.Errorf("executor called %d times, want 1", exec.toolCalls)
	}
	// the residual marker is flattened to literal text, not resolved
	if !strings.Contains(results[0].Value, "[[loop('x')]]") {
		t.Errorf("Value = %q, want the flattened marker text", results[0].Value)
	}
}

func TestExecuteFlowExecutorErrorSurfaces(t *testing.T) {
	exec := &mockExecutor{name: "slow", err: &ErrExecutorTimeout{Executor: "slow"}}
	e := New(WithRegistry(testRegistry(t, nil)))

	flow, _ := e.Parse(context.Background(), exec, "q", "", 0, StrategyReject, 0)
	_, err := e.ExecuteFlow(context.Background(), flow)
	var timeout *ErrExecutorTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("err = %v, want *ErrExecutorTimeout", err)
	}
}

func TestExecuteFlowContextCancelled(t *testing.T) {
	exec := &mockExecutor{name: "mock", replies: []string{"unreached"}}
	e := New(WithRegistry(testRegistry(t, nil)))

	flow, _ := e.Parse(context.Background(), exec, "q", "", 0, StrategyReject, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ExecuteFlow(ctx, flow)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if exec.toolCalls != 0 {
		t.Errorf("executor called %d times after cancellation, want 0", exec.toolCalls)
	}
}

func TestExecuteFlowBareResultPassesThrough(t *testing.T) {
	e := New()
	seeded := NewResult(nil, "precomputed", nil)
	flow := NewFlow[Node](Queue)
	flow.Push(seeded)

	results, err := e.ExecuteFlow(context.Background(), flow)
	if err != nil {
		t.Fatalf("ExecuteFlow: %v", err)
	}
	if len(results) != 1 || results[0] != seeded {
		t.Fatalf("results = %+v, want the seeded Result", results)
	}
}

func TestExecuteFlowPlainNodeBecomesResult(t *testing.T) {
	e := New()
	flow := NewFlow[Node](Queue)
	flow.Push(&Text{Text: "already resolved"})

	results, err := e.ExecuteFlow(context.Background(), flow)
	if err != nil {
		t.Fatalf("ExecuteFlow: %v", err)
	}
	if len(results) != 1 || results[0].Value != "already resolved" {
		t.Fatalf("results = %+v", results)
	}
}

func TestExecuteFlowStackDiscipline(t *testing.T) {
	// calls still resolve before the message revisit under a stack
	exec := &mockExecutor{name: "mock", replies: []string{"got [[search('x')]]"}}
	e := New(WithRegistry(testRegistry(t, nil)))

	flow := NewFlow[Node](Stack)
	flow.Push(e.newCall(exec, "q", ""))
	results, err := e.ExecuteFlow(context.Background(), flow)
	if err != nil {
		t.Fatalf("ExecuteFlow: %v", err)
	}
	if len(results) != 1 || results[0].Value != "got Lisa Su" {
		t.Fatalf("results[0].Value = %q, want %q", results[0].Value, "got Lisa Su")
	}
}
