package braid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// mockExecutor scripts model round trips for engine tests. ExecuteWithTools
// consumes replies in order, repeating the last one; Execute answers the
// plain path with a canned terminal Result.
type mockExecutor struct {
	name       string
	replies    []string
	err        error
	toolCalls  int
	plainCalls int
	chatMode   bool
}

func (m *mockExecutor) ExecuteWithTools(_ context.Context, _ *LLMCall, _ []Definition) (*Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	idx := m.toolCalls
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	m.toolCalls++
	return AssistantMessage(m.replies[idx]), nil
}

func (m *mockExecutor) Execute(_ context.Context, _ string, data string) (Node, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.plainCalls++
	return NewResult(nil, "summary: "+data, nil), nil
}

func (m *mockExecutor) CanExecute(string) bool  { return true }
func (m *mockExecutor) Name() string            { return m.name }
func (m *mockExecutor) SetChatMode(enabled bool) { m.chatMode = enabled }

var _ Executor = (*mockExecutor)(nil)

// mockRanker returns canned sections for the search strategy.
type mockRanker struct {
	sections []string
	err      error
}

func (m *mockRanker) Rank(_ context.Context, _, _ string) ([]string, error) {
	return m.sections, m.err
}

// wordCounter counts one token per whitespace-separated word, making
// budget and chunking arithmetic exact in tests.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

// dispatchCount tracks per-function invocation counts across a test.
type dispatchCount map[string]int

// testRegistry builds the registry shared by parser and engine tests.
// counts may be nil.
func testRegistry(t *testing.T, counts dispatchCount) *Registry {
	t.Helper()
	record := func(name string) {
		if counts != nil {
			counts[name]++
		}
	}
	r, err := NewRegistry(
		Function{
			Name:        "search",
			Description: "Web search.",
			Params:      []Param{{Name: "query", Kind: KindString}},
			Fn: func(_ context.Context, args map[string]string) (string, error) {
				record("search")
				return "Lisa Su", nil
			},
		},
		Function{
			Name:   "echo",
			Params: []Param{{Name: "text", Kind: KindString}},
			Fn: func(_ context.Context, args map[string]string) (string, error) {
				record("echo")
				return args["text"], nil
			},
		},
		Function{
			Name:   "fail",
			Params: []Param{{Name: "reason", Kind: KindString}},
			Fn: func(_ context.Context, _ map[string]string) (string, error) {
				record("fail")
				return "", errors.New("boom")
			},
		},
		Function{
			Name:   "panics",
			Params: []Param{{Name: "reason", Kind: KindString}},
			Fn: func(_ context.Context, _ map[string]string) (string, error) {
				record("panics")
				panic("kaboom")
			},
		},
		Function{
			Name:   "mode",
			Params: []Param{{Name: "level", Kind: KindEnum, Enum: []string{"fast", "slow"}}},
			Fn: func(_ context.Context, args map[string]string) (string, error) {
				record("mode")
				return "running " + args["level"], nil
			},
		},
		Function{
			Name:   "loop",
			Params: []Param{{Name: "text", Kind: KindString}},
			Fn: func(_ context.Context, args map[string]string) (string, error) {
				record("loop")
				return fmt.Sprintf("[[loop('%s')]]", args["text"]), nil
			},
		},
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}
